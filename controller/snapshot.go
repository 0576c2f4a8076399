package main

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/aimlessaugustus/iot-agriculture/camera"
	"github.com/aimlessaugustus/iot-agriculture/web"
)

// snapshotSlot is the snapshot source handed to the web app before the
// HTTP server starts. Camera bring-up happens later, inside the robot's
// work function, so the source lands in the slot under a mutex; until
// then the slot reports itself disabled.
type snapshotSlot struct {
	mu    sync.Mutex
	inner web.Snapshotter
}

func (s *snapshotSlot) set(inner web.Snapshotter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner = inner
}

func (s *snapshotSlot) get() web.Snapshotter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner
}

func (s *snapshotSlot) Enabled() bool {
	inner := s.get()
	return inner != nil && inner.Enabled()
}

func (s *snapshotSlot) Snapshot(begin func(declaredLen uint32) io.Writer) (web.Snapshot, error) {
	inner := s.get()
	if inner == nil {
		return web.Snapshot{}, errors.New("snapshot source not ready")
	}
	return inner.Snapshot(begin)
}

// fifoSnapshots serves dashboard snapshots straight off the SPI camera
// FIFO. The mutex covers the whole capture-and-stream cycle so a second
// browser tab can never interleave with an open burst read.
type fifoSnapshots struct {
	mu     sync.Mutex
	cam    *camera.Camera
	maxLen uint32
}

func (s *fifoSnapshots) Enabled() bool { return s.cam.Verified() }

func (s *fifoSnapshots) Snapshot(begin func(declaredLen uint32) io.Writer) (web.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cr, err := s.cam.Capture(s.maxLen)
	snap := web.Snapshot{Capture: cr}
	if err != nil || cr.Outcome != camera.OutcomeReady {
		return snap, err
	}

	// Small write buffer between the byte-at-a-time scanner and the
	// HTTP response; flushed before the result is reported.
	bw := bufio.NewWriterSize(begin(cr.Length), 1024)
	sr, err := s.cam.CopyFrame(cr.Length, bw, camera.ScanOptions{})
	snap.Scan = sr
	if ferr := bw.Flush(); err == nil && ferr != nil {
		err = ferr
	}
	return snap, err
}

// webcamSnapshots is the degraded-mode source: a USB webcam standing in
// for a camera module that failed its bus self-test. Frames arrive
// whole, so the capture result is synthesized from the frame size.
type webcamSnapshots struct {
	mu  sync.Mutex
	src camera.WebcamSource
}

func (s *webcamSnapshots) Enabled() bool { return true }

func (s *webcamSnapshots) Snapshot(begin func(declaredLen uint32) io.Writer) (web.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.src.Snapshot()
	if err != nil {
		return web.Snapshot{}, err
	}
	if len(frame) == 0 {
		return web.Snapshot{Capture: camera.CaptureResult{Outcome: camera.OutcomeZeroLength}}, nil
	}

	snap := web.Snapshot{
		Capture: camera.CaptureResult{Outcome: camera.OutcomeReady, Length: uint32(len(frame))},
	}
	n, err := begin(snap.Capture.Length).Write(frame)
	snap.Scan = camera.ScanResult{
		Consumed: uint32(len(frame)),
		Emitted:  uint32(n),
		FoundSOI: n > 0,
		FoundEOI: n == len(frame),
	}
	return snap, err
}

// gatedSnapshots lets the camera override ("camera" -> "off") switch a
// working source off without tearing it down.
type gatedSnapshots struct {
	inner   web.Snapshotter
	allowed func() bool
}

func (s *gatedSnapshots) Enabled() bool {
	return s.allowed() && s.inner.Enabled()
}

func (s *gatedSnapshots) Snapshot(begin func(declaredLen uint32) io.Writer) (web.Snapshot, error) {
	return s.inner.Snapshot(begin)
}
