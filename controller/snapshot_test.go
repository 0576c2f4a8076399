package main

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/aimlessaugustus/iot-agriculture/camera"
	"github.com/aimlessaugustus/iot-agriculture/web"
)

type stubSnapshots struct {
	frame []byte
	calls int
}

func (s *stubSnapshots) Enabled() bool { return true }

func (s *stubSnapshots) Snapshot(begin func(declaredLen uint32) io.Writer) (web.Snapshot, error) {
	s.calls++
	w := begin(uint32(len(s.frame)))
	n, err := w.Write(s.frame)
	return web.Snapshot{
		Capture: camera.CaptureResult{Outcome: camera.OutcomeReady, Length: uint32(len(s.frame))},
		Scan:    camera.ScanResult{Emitted: uint32(n), FoundSOI: true, FoundEOI: true},
	}, err
}

func TestSnapshotSlotEmptyIsDisabled(t *testing.T) {
	slot := &snapshotSlot{}
	if slot.Enabled() {
		t.Error("empty slot reported enabled")
	}
	begun := false
	if _, err := slot.Snapshot(func(uint32) io.Writer { begun = true; return io.Discard }); err == nil {
		t.Error("empty slot produced a snapshot")
	}
	if begun {
		t.Error("empty slot invoked begin")
	}
}

func TestSnapshotSlotDelegatesOnceSet(t *testing.T) {
	slot := &snapshotSlot{}
	stub := &stubSnapshots{frame: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
	slot.set(stub)

	if !slot.Enabled() {
		t.Fatal("slot not enabled after set")
	}
	var buf bytes.Buffer
	snap, err := slot.Snapshot(func(uint32) io.Writer { return &buf })
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Capture.Outcome != camera.OutcomeReady || stub.calls != 1 {
		t.Errorf("delegation: outcome %v, calls %d", snap.Capture.Outcome, stub.calls)
	}
	if !bytes.Equal(buf.Bytes(), stub.frame) {
		t.Errorf("frame = % X", buf.Bytes())
	}
}

// The HTTP server serves /capture before camera bring-up fills the
// slot; the race detector keeps the handoff honest.
func TestSnapshotSlotConcurrentSet(t *testing.T) {
	slot := &snapshotSlot{}
	stub := &stubSnapshots{frame: []byte{0xFF, 0xD8, 0xFF, 0xD9}}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			slot.set(stub)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if slot.Enabled() {
				var buf bytes.Buffer
				slot.Snapshot(func(uint32) io.Writer { return &buf })
			}
		}
	}()
	wg.Wait()
}

func TestGatedSnapshotsHonorsOverride(t *testing.T) {
	allowed := true
	gate := &gatedSnapshots{
		inner:   &stubSnapshots{frame: []byte{0xFF, 0xD8, 0xFF, 0xD9}},
		allowed: func() bool { return allowed },
	}
	if !gate.Enabled() {
		t.Error("gate closed while allowed")
	}
	allowed = false
	if gate.Enabled() {
		t.Error("gate open while overridden off")
	}
}
