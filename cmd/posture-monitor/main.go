// posture-monitor: watches a camera, classifies sitting posture frame by
// frame and alerts on sustained bad posture. Session state is persisted
// locally, mirrored to a posture-api and optionally published over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-posture/internal/config"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/alert"
	"github.com/teslashibe/go-posture/pkg/capture"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/landmarks"
	"github.com/teslashibe/go-posture/pkg/metrics"
	"github.com/teslashibe/go-posture/pkg/monitor"
	"github.com/teslashibe/go-posture/pkg/server"
	"github.com/teslashibe/go-posture/pkg/session"
	"github.com/teslashibe/go-posture/pkg/statesync"
)

var version = "1.0.0"

// options are the flags that have no environment equivalent.
type options struct {
	listen    string
	replay    string
	loop      bool
	noSync    bool
	autostart bool
	debug     bool
}

func main() {
	cfg, opts := parseFlags()
	log.Init(cfg.LogLevel)
	logger := log.Component("posture-monitor")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The posture-api owns DataFile/RedisKey; the monitor keeps its own
	// document so the two processes never overwrite each other.
	store, err := openStore(ctx, cfg.ForMonitor())
	if err != nil {
		logger.Error("store unavailable", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	agg := session.NewAggregator(
		session.LoadState(ctx, store, logger),
		session.WithStore(store),
	)

	m := metrics.New()
	h := hub.New("posture-monitor")
	go h.Run(ctx)

	open, detector, err := pipelineSource(cfg, opts)
	if err != nil {
		logger.Error("detector unavailable", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	sink := alertSink(cfg, logger)

	monCfg := monitor.DefaultConfig()
	monCfg.Posture.CalibrationFrames = cfg.CalibrationFrames
	monCfg.DataLogPath = cfg.DataLogFile
	monOpts := []monitor.Option{
		monitor.WithConfig(monCfg),
		monitor.WithAlertSink(sink),
		monitor.WithPublisher(h),
		monitor.WithMetrics(m),
	}

	// The server is created before the health poller so connectivity
	// changes can reach /status.
	var srv *server.Server

	var notifiers statesync.Multi
	var client *statesync.Client
	if cfg.APIURL != "" && !opts.noSync {
		client = statesync.NewClient(cfg.APIURL, 2*time.Second)
		notifiers = append(notifiers, client)
	}
	if cfg.MQTTBroker != "" {
		dialCtx, dialCancel := context.WithTimeout(ctx, statesync.DefaultConnectTimeout)
		pub, err := statesync.DialMQTT(dialCtx, statesync.MQTTOptions{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		dialCancel()
		if err != nil {
			logger.Warn("mqtt disabled", "error", err)
		} else {
			defer pub.Close()
			notifiers = append(notifiers, pub)
		}
	}
	var dispatcher *statesync.Dispatcher
	if len(notifiers) > 0 {
		dispatcher = statesync.NewDispatcher(notifiers, statesync.WithResultFunc(m.ObserveSync))
		defer dispatcher.Close()
		monOpts = append(monOpts, monitor.WithSyncer(dispatcher))
	}

	mon := monitor.New(agg, open, detector, monOpts...)

	if opts.listen != "" {
		srvCfg := server.DefaultConfig()
		srvCfg.AccessLog = opts.debug
		srv = server.New(srvCfg, mon, h, m)
		go func() {
			if err := srv.Listen(opts.listen); err != nil {
				logger.Error("server error", "error", err)
				cancel()
			}
		}()
	}

	if client != nil {
		poller := statesync.NewHealthPoller(client, cfg.HealthInterval, func(connected bool) {
			m.SetRemoteConnected(connected)
			if srv != nil {
				srv.SetRemoteConnected(connected)
			}
			h.Publish(hub.EventConnectivity, hub.Connectivity{Connected: connected, Remote: client.BaseURL()})
		})
		go poller.Run(ctx)
	}

	logger.Info("posture monitor ready",
		"version", version,
		"listen", opts.listen,
		"replay", opts.replay,
		"remote", cfg.APIURL,
		"calibration_frames", cfg.CalibrationFrames)

	if opts.autostart || agg.Monitoring() {
		if _, err := mon.Start(ctx); err != nil && !errors.Is(err, session.ErrAlreadyMonitoring) {
			logger.Error("start failed", "error", err)
			os.Exit(1)
		}
	}

	waitForExit(ctx, mon, opts)

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if mon.Running() {
		if sess, err := mon.Stop(shutdownCtx); err != nil {
			logger.Warn("stop failed", "error", err)
		} else {
			logger.Info("session saved", "session_id", sess.ID, "score", sess.PostureScore)
		}
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}
}

// waitForExit blocks until a signal arrives. A replay without -http or
// looping ends the process once the recording is exhausted.
func waitForExit(ctx context.Context, mon *monitor.Monitor, opts options) {
	if opts.replay == "" || opts.loop || opts.listen != "" {
		<-ctx.Done()
		return
	}
	done := make(chan struct{})
	go func() {
		mon.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

// parseFlags reads flags, then .env and the environment. Flags that were
// set explicitly win.
func parseFlags() (config.Config, options) {
	var opts options
	flag.StringVar(&opts.listen, "http", ":8081", "Local API listen address; empty disables it")
	flag.StringVar(&opts.replay, "replay", "", "Replay landmarks from a JSONL file instead of the camera")
	flag.BoolVar(&opts.loop, "loop", false, "Loop the replay file")
	flag.BoolVar(&opts.noSync, "no-sync", false, "Do not push state to POSTURE_API_URL")
	flag.BoolVar(&opts.autostart, "autostart", true, "Start a session immediately")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging and the access log")
	apiURL := flag.String("api-url", "", "Remote posture API (overrides POSTURE_API_URL)")
	camera := flag.String("camera", "", "Camera index or stream URL (overrides CAMERA_DEVICE)")
	detectorURL := flag.String("detector-url", "", "Pose sidecar URL (overrides DETECTOR_URL)")
	sound := flag.String("sound", "", "Alert sound file (overrides ALERT_SOUND)")
	dataFile := flag.String("data-file", "", "Monitor state file (overrides POSTURE_MONITOR_DATA_FILE)")
	flag.Parse()

	cfg := config.Load()
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *camera != "" {
		cfg.CameraDevice = *camera
	}
	if *detectorURL != "" {
		cfg.DetectorURL = *detectorURL
	}
	if *sound != "" {
		cfg.AlertSound = *sound
	}
	if *dataFile != "" {
		cfg.MonitorDataFile = *dataFile
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, opts
}

// pipelineSource picks the frame source and landmark detector: the camera
// and the pose sidecar, or blank frames driving a recorded landmark file.
func pipelineSource(cfg config.Config, opts options) (capture.Opener, landmarks.Detector, error) {
	if opts.replay != "" {
		d, err := landmarks.OpenReplay(opts.replay, opts.loop)
		if err != nil {
			return nil, nil, err
		}
		return capture.BlankOpener(), d, nil
	}

	camCfg := capture.DefaultConfig()
	camCfg.Device = cfg.CameraDevice

	detCfg := landmarks.DefaultRemoteConfig()
	if cfg.DetectorURL != "" {
		detCfg.URL = cfg.DetectorURL
	}
	return capture.CameraOpener(camCfg), landmarks.NewRemote(detCfg), nil
}

func alertSink(cfg config.Config, logger *slog.Logger) alert.Sink {
	sinks := alert.Multi{alert.NewLogSink(log.Component("alert"))}
	if cfg.AlertSound == "" {
		return sinks
	}
	sound, err := alert.NewSoundSink(cfg.AlertSound)
	if err != nil {
		logger.Warn("alert sound disabled", "error", err)
		return sinks
	}
	return append(sinks, sound)
}

func openStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		return session.NewJSONStore(cfg.DataFile), nil
	case config.StoreRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return session.DialRedis(dialCtx, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
