package landmarks

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posture/internal/httpc"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// RemoteConfig configures a RemoteDetector.
type RemoteConfig struct {
	URL           string
	Timeout       time.Duration
	MinVisibility float64 // 0 disables the visibility check
	MaxWidth      int     // frames wider than this are downscaled; 0 = never
}

// DefaultRemoteConfig returns defaults for a local pose sidecar.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		URL:           "http://localhost:8001",
		Timeout:       2 * time.Second,
		MinVisibility: 0.5,
		MaxWidth:      640,
	}
}

type detectResponse struct {
	Landmarks []Point `json:"landmarks"`
}

// RemoteDetector posts JPEG frames to a pose-estimation sidecar over HTTP
// and reads back the 33-point landmark list.
type RemoteDetector struct {
	cfg    RemoteConfig
	http   *resty.Client
	logger *slog.Logger
}

// NewRemote creates a detector for the sidecar at cfg.URL.
func NewRemote(cfg RemoteConfig) *RemoteDetector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteConfig().Timeout
	}
	return &RemoteDetector{
		cfg:    cfg,
		http:   httpc.NewResty(cfg.URL, cfg.Timeout),
		logger: log.Component("landmarks"),
	}
}

// Detect implements Detector.
func (d *RemoteDetector) Detect(ctx context.Context, jpeg []byte) (*posture.Pose, error) {
	body := jpeg
	if d.cfg.MaxWidth > 0 {
		scaled, err := Downscale(jpeg, d.cfg.MaxWidth)
		if err != nil {
			return nil, err
		}
		body = scaled
	}

	var out detectResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/jpeg").
		SetBody(body).
		SetResult(&out).
		Post("/detect")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrDetectorUnavailable, resp.StatusCode(), resp.String())
	}

	pose := ToPose(out.Landmarks, d.cfg.MinVisibility)
	if pose == nil {
		d.logger.Debug("no body in frame", "points", len(out.Landmarks))
	}
	return pose, nil
}

// Close implements Detector.
func (d *RemoteDetector) Close() error {
	return nil
}

// Downscale re-encodes a JPEG so it is at most maxWidth pixels wide. Frames
// that already fit are returned unchanged.
func Downscale(jpeg []byte, maxWidth int) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("decode image: empty")
	}
	if img.Cols() <= maxWidth {
		return jpeg, nil
	}

	h := img.Rows() * maxWidth / img.Cols()
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(img, &small, image.Pt(maxWidth, h), 0, 0, gocv.InterpolationArea)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, small)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

var _ Detector = (*RemoteDetector)(nil)
