package camera

import (
	"fmt"
	"io"
)

// Outcome classifies one capture attempt. The hardware always reports
// some length even on failure; zero and excessive values are the only
// failure signals available without deeper register introspection.
type Outcome int

const (
	OutcomeReady Outcome = iota
	OutcomeZeroLength
	OutcomeTooLarge
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeZeroLength:
		return "zero-length"
	case OutcomeTooLarge:
		return "too-large"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// CaptureResult describes one capture attempt. Length is the
// hardware-declared FIFO byte count, valid on every outcome. TimedOut
// records that the done flag never rose within the poll deadline; the
// capture still proceeded with whatever the length register reported
// (soft timeout).
type CaptureResult struct {
	Outcome  Outcome
	Length   uint32
	TimedOut bool
}

// Capture drives one capture-and-ready cycle: flush the FIFO, clear the
// done flag, trigger the capture, poll the done bit until it rises or
// the deadline passes, then read and classify the declared length.
// maxLen is the caller's upper bound: the HTTP path runs with a small
// configured bound, the serial dump with a tolerant 512 KiB one.
//
// On ZeroLength and TooLarge the done flag is cleared before returning
// so the next attempt starts from known-empty hardware state.
func (c *Camera) Capture(maxLen uint32) (CaptureResult, error) {
	if !c.verified {
		return CaptureResult{}, ErrNotVerified
	}

	// Flush also clears the done flag; writing it twice keeps the
	// clear idempotent even if the first write raced a late frame.
	if err := c.clearDone(); err != nil {
		return CaptureResult{}, fmt.Errorf("camera: fifo flush: %w", err)
	}
	if err := c.clearDone(); err != nil {
		return CaptureResult{}, fmt.Errorf("camera: clear done flag: %w", err)
	}
	if err := c.bus.WriteRegister(regFIFOCtrl, maskFIFOStart); err != nil {
		return CaptureResult{}, fmt.Errorf("camera: start capture: %w", err)
	}

	timedOut := true
	deadline := c.clock.Now().Add(c.pollTimeout)
	for {
		status, err := c.bus.ReadRegister(regStatus)
		if err != nil {
			return CaptureResult{}, fmt.Errorf("camera: poll status: %w", err)
		}
		if status&maskCaptureDone != 0 {
			timedOut = false
			break
		}
		if !c.clock.Now().Before(deadline) {
			// Soft timeout: fall through and classify whatever
			// the length register reports now.
			break
		}
		c.clock.Sleep(c.pollInterval)
	}

	length, err := c.fifoLength()
	if err != nil {
		return CaptureResult{}, fmt.Errorf("camera: read fifo length: %w", err)
	}

	res := CaptureResult{Length: length, TimedOut: timedOut}
	switch {
	case length == 0:
		res.Outcome = OutcomeZeroLength
	case length >= maxLen:
		res.Outcome = OutcomeTooLarge
	default:
		res.Outcome = OutcomeReady
		return res, nil
	}
	if err := c.clearDone(); err != nil {
		return res, fmt.Errorf("camera: clear done flag: %w", err)
	}
	return res, nil
}

// CopyFrame burst-reads length bytes out of the FIFO, scanning for the
// JPEG markers and forwarding the in-frame bytes to sink. Chip select
// is released and the done flag cleared on every path, including sink
// write failures.
func (c *Camera) CopyFrame(length uint32, sink io.ByteWriter, opts ScanOptions) (ScanResult, error) {
	if !c.verified {
		return ScanResult{}, ErrNotVerified
	}
	if opts.Clock == nil {
		opts.Clock = c.clock
	}
	br, err := c.bus.Burst()
	if err != nil {
		return ScanResult{}, fmt.Errorf("camera: open burst: %w", err)
	}
	res, scanErr := ScanFrame(br, length, sink, opts)
	err = scanErr
	if cerr := br.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("camera: close burst: %w", cerr)
	}
	if derr := c.clearDone(); err == nil && derr != nil {
		err = fmt.Errorf("camera: clear done flag: %w", derr)
	}
	return res, err
}

// StreamFrame is the one-shot path used by the snapshot handler:
// capture, classify, and on Ready stream the frame to sink. When the
// outcome is not Ready the zero ScanResult is returned and the caller
// maps the outcome to its own status reporting.
func (c *Camera) StreamFrame(maxLen uint32, sink io.ByteWriter, opts ScanOptions) (CaptureResult, ScanResult, error) {
	cr, err := c.Capture(maxLen)
	if err != nil || cr.Outcome != OutcomeReady {
		return cr, ScanResult{}, err
	}
	sr, err := c.CopyFrame(cr.Length, sink, opts)
	return cr, sr, err
}
