package camera

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeBurst yields scripted bytes and pads with zeros once exhausted,
// like a FIFO clocking out with nothing left to say.
type fakeBurst struct {
	data   []byte
	pos    int
	closed int
}

func (f *fakeBurst) ReadByte() (byte, error) {
	if f.pos >= len(f.data) {
		f.pos++
		return 0x00, nil
	}
	b := f.data[f.pos]
	f.pos++
	return b, nil
}

func (f *fakeBurst) Close() error {
	f.closed++
	return nil
}

// byteRecorder is a sink that records writes and can be made to fail
// after a given number of bytes.
type byteRecorder struct {
	bytes  []byte
	failAt int // fail once this many bytes are stored; -1 never
}

func errSinkAfter(n int) *byteRecorder { return &byteRecorder{failAt: n} }

func newRecorder() *byteRecorder { return &byteRecorder{failAt: -1} }

func (r *byteRecorder) WriteByte(b byte) error {
	if r.failAt >= 0 && len(r.bytes) >= r.failAt {
		return errors.New("sink refused write")
	}
	r.bytes = append(r.bytes, b)
	return nil
}

func TestScanFrameExtractsFrame(t *testing.T) {
	// End-to-end scenario: junk byte, full frame, trailing byte.
	src := &fakeBurst{data: []byte{0x00, 0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9, 0x03}}
	sink := newRecorder()

	res, err := ScanFrame(src, 8, sink, ScanOptions{})
	if err != nil {
		t.Fatalf("ScanFrame: %v", err)
	}

	want := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	if !bytes.Equal(sink.bytes, want) {
		t.Errorf("emitted % X, want % X", sink.bytes, want)
	}
	if !res.FoundSOI || !res.FoundEOI {
		t.Errorf("markers: SOI=%v EOI=%v, want both", res.FoundSOI, res.FoundEOI)
	}
	if res.Emitted != 6 {
		t.Errorf("Emitted = %d, want 6", res.Emitted)
	}
	// Scan halts immediately after EOI: the trailing 0x03 stays on the bus.
	if res.Consumed != 7 {
		t.Errorf("Consumed = %d, want 7", res.Consumed)
	}
	if src.pos != 7 {
		t.Errorf("bus reads = %d, want 7", src.pos)
	}
	if res.Truncated() {
		t.Error("complete frame reported as truncated")
	}
}

func TestScanFrameNoSOI(t *testing.T) {
	src := &fakeBurst{data: []byte{0x11, 0x22, 0x33}}
	sink := newRecorder()

	res, err := ScanFrame(src, 3, sink, ScanOptions{})
	if err != nil {
		t.Fatalf("ScanFrame: %v", err)
	}
	if len(sink.bytes) != 0 {
		t.Errorf("emitted % X, want nothing", sink.bytes)
	}
	if res.Consumed != 3 {
		t.Errorf("Consumed = %d, want full budget 3", res.Consumed)
	}
	if res.FoundSOI || res.FoundEOI || res.Truncated() {
		t.Errorf("unexpected marker state: %+v", res)
	}
}

func TestScanFrameTruncated(t *testing.T) {
	src := &fakeBurst{data: []byte{0xFF, 0xD8, 0x10, 0x20, 0x30}}
	sink := newRecorder()

	res, err := ScanFrame(src, 5, sink, ScanOptions{})
	if err != nil {
		t.Fatalf("ScanFrame: %v", err)
	}
	want := []byte{0xFF, 0xD8, 0x10, 0x20, 0x30}
	if !bytes.Equal(sink.bytes, want) {
		t.Errorf("emitted % X, want % X", sink.bytes, want)
	}
	if !res.Truncated() {
		t.Error("expected truncated result when EOI never appears")
	}
	if res.Consumed != 5 {
		t.Errorf("Consumed = %d, want 5", res.Consumed)
	}
}

func TestScanFrameReadsExactlyBudget(t *testing.T) {
	// No markers anywhere: the budget alone bounds the reads.
	src := &fakeBurst{data: make([]byte, 64)}
	res, err := ScanFrame(src, 17, newRecorder(), ScanOptions{})
	if err != nil {
		t.Fatalf("ScanFrame: %v", err)
	}
	if res.Consumed != 17 || src.pos != 17 {
		t.Errorf("consumed %d, bus reads %d, want 17 each", res.Consumed, src.pos)
	}
}

func TestScanFrameZeroLength(t *testing.T) {
	src := &fakeBurst{data: []byte{0xFF, 0xD8}}
	res, err := ScanFrame(src, 0, newRecorder(), ScanOptions{})
	if err != nil {
		t.Fatalf("ScanFrame: %v", err)
	}
	if res.Consumed != 0 || src.pos != 0 {
		t.Errorf("zero budget still read %d bytes", src.pos)
	}
}

func TestScanFrameSinkFailureAborts(t *testing.T) {
	src := &fakeBurst{data: []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}}
	sink := errSinkAfter(3)

	_, err := ScanFrame(src, 6, sink, ScanOptions{})
	if err == nil {
		t.Fatal("expected error from failing sink")
	}
	if len(sink.bytes) != 3 {
		t.Errorf("sink holds %d bytes, want 3", len(sink.bytes))
	}
}

func TestScanFramePacing(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	src := &fakeBurst{data: []byte{0x00, 0x00, 0x00, 0x00}}

	res, err := ScanFrame(src, 4, newRecorder(), ScanOptions{
		InterByteDelay: 87 * time.Microsecond,
		Clock:          clk,
	})
	if err != nil {
		t.Fatalf("ScanFrame: %v", err)
	}
	// One pacing delay per read after the priming byte.
	if want := int(res.Consumed) - 1; len(clk.sleeps) != want {
		t.Errorf("pacing sleeps = %d, want %d", len(clk.sleeps), want)
	}
	for _, d := range clk.sleeps {
		if d != 87*time.Microsecond {
			t.Fatalf("pacing sleep = %v, want 87µs", d)
		}
	}
}
