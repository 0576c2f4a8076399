package camera

import (
	"fmt"
	"io"
	"time"
)

// ScanOptions parameterizes one burst scan.
type ScanOptions struct {
	// InterByteDelay paces the burst reads for slow blocking sinks
	// (a serial port at a fixed baud rate). Zero means no pacing.
	InterByteDelay time.Duration

	// Clock supplies the pacing sleep. Nil falls back to the real
	// clock; CopyFrame fills in the camera's clock.
	Clock Clock
}

// ScanResult reports what one burst scan did.
type ScanResult struct {
	Consumed uint32 // bytes clocked off the bus
	Emitted  uint32 // bytes forwarded to the sink
	FoundSOI bool
	FoundEOI bool
}

// Truncated reports that a frame was started but the byte budget ran
// out before the End-Of-Image marker: the sink received a partial,
// invalid JPEG. The source hardware tolerates this; callers decide
// whether to care.
func (r ScanResult) Truncated() bool { return r.FoundSOI && !r.FoundEOI }

// ScanFrame extracts one JPEG frame from a raw burst read of length
// bytes, forwarding only the in-frame bytes (Start-Of-Image through
// End-Of-Image, markers included) to sink.
//
// The scan keeps a 2-byte sliding window and never buffers more than
// that. The byte budget strictly bounds reads: if no SOI appears within
// it the result is silently empty (Emitted 0, no error); if SOI is
// found the scan stops immediately after EOI, leaving any remaining
// budget unread. Each bus byte is consumed exactly once.
//
// A sink write failure aborts the scan and is returned wrapped; the
// caller still owns releasing the bus and clearing the done flag.
func ScanFrame(r BurstReader, length uint32, sink io.ByteWriter, opts ScanOptions) (ScanResult, error) {
	var res ScanResult
	if length == 0 {
		return res, nil
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}

	// Prime the window.
	cur, err := r.ReadByte()
	if err != nil {
		return res, fmt.Errorf("burst read: %w", err)
	}
	res.Consumed = 1

	inFrame := false
	var prev byte
	for res.Consumed < length {
		prev = cur
		if opts.InterByteDelay > 0 {
			clock.Sleep(opts.InterByteDelay)
		}
		cur, err = r.ReadByte()
		if err != nil {
			return res, fmt.Errorf("burst read: %w", err)
		}
		res.Consumed++

		switch {
		case !inFrame && prev == jpegMarker && cur == jpegSOI:
			inFrame = true
			res.FoundSOI = true
			if err := sink.WriteByte(jpegMarker); err != nil {
				return res, fmt.Errorf("sink write: %w", err)
			}
			if err := sink.WriteByte(jpegSOI); err != nil {
				res.Emitted++
				return res, fmt.Errorf("sink write: %w", err)
			}
			res.Emitted += 2

		case inFrame:
			if err := sink.WriteByte(cur); err != nil {
				return res, fmt.Errorf("sink write: %w", err)
			}
			res.Emitted++
			if prev == jpegMarker && cur == jpegEOI {
				res.FoundEOI = true
				return res, nil
			}
		}
	}
	return res, nil
}
