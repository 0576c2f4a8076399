package camera

import (
	"fmt"
	"strings"

	"github.com/blackjack/webcam"
)

// WebcamSource grabs JPEG snapshots from a V4L2 device. It is the
// degraded-mode stand-in used when the SPI camera fails its bus
// self-test but a USB webcam is plugged in for bench work.
type WebcamSource struct {
	Device string
	Width  uint32
	Height uint32
}

// Snapshot opens the device, grabs one MJPEG frame and returns it.
// Unlike the FIFO pipeline this buffers the whole frame; V4L2 hands us
// complete frames anyway.
func (s WebcamSource) Snapshot() ([]byte, error) {
	cam, err := webcam.Open(s.Device)
	if err != nil {
		return nil, fmt.Errorf("webcam: open %s: %w", s.Device, err)
	}
	defer cam.Close()

	var jpeg webcam.PixelFormat
	for f, name := range cam.GetSupportedFormats() {
		if strings.Contains(name, "JPEG") {
			jpeg = f
			break
		}
	}
	if jpeg == 0 {
		return nil, fmt.Errorf("webcam: %s has no JPEG format", s.Device)
	}

	w, h := s.Width, s.Height
	if w == 0 || h == 0 {
		w, h = 640, 480
	}
	if _, _, _, err := cam.SetImageFormat(jpeg, w, h); err != nil {
		return nil, fmt.Errorf("webcam: set format: %w", err)
	}
	if err := cam.StartStreaming(); err != nil {
		return nil, fmt.Errorf("webcam: start streaming: %w", err)
	}
	if err := cam.WaitForFrame(5); err != nil {
		return nil, fmt.Errorf("webcam: wait for frame: %w", err)
	}
	frame, err := cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("webcam: read frame: %w", err)
	}
	out := make([]byte, len(frame))
	copy(out, frame)
	return out, nil
}
