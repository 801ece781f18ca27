package capture

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Camera captures frames through OpenCV.
type Camera struct {
	cfg Config

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	img    gocv.Mat
	seq    uint64
	closed bool
}

// Open opens the configured device. Failures wrap ErrDeviceUnavailable.
func Open(cfg Config) (*Camera, error) {
	cfg.Validate()

	vc, err := gocv.OpenVideoCapture(deviceID(cfg.Device))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Camera{cfg: cfg, cap: vc, img: gocv.NewMat()}, nil
}

// CameraOpener returns an Opener for cfg.
func CameraOpener(cfg Config) Opener {
	return func(ctx context.Context) (Source, error) {
		return Open(cfg)
	}
}

// deviceID turns "0" into a camera index and leaves paths and URLs alone.
func deviceID(device string) interface{} {
	if n, err := strconv.Atoi(device); err == nil {
		return n
	}
	return device
}

// Read grabs the next frame and encodes it as JPEG.
func (c *Camera) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Frame{}, ErrClosed
	}
	if ok := c.cap.Read(&c.img); !ok || c.img.Empty() {
		return Frame{}, ErrEmptyFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.img, []int{gocv.IMWriteJpegQuality, c.cfg.Quality})
	if err != nil {
		return Frame{}, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	c.seq++
	data := append([]byte(nil), buf.GetBytes()...)
	return Frame{
		JPEG:   data,
		Time:   time.Now(),
		Seq:    c.seq,
		Width:  c.img.Cols(),
		Height: c.img.Rows(),
	}, nil
}

// Close releases the device. It is safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.img.Close()
	return c.cap.Close()
}

var _ Source = (*Camera)(nil)
