// Package camera drives an ArduChip-style SPI camera module: a FIFO
// frame buffer behind a register interface, captured one JPEG frame at
// a time and streamed out byte-by-byte without ever holding a full
// frame in memory.
package camera

import (
	"errors"
	"fmt"
	"time"
)

// ErrBusVerification means the register round-trip self-test failed:
// the camera is absent or the wiring is wrong.
var ErrBusVerification = errors.New("camera: bus verification failed")

// ErrNotVerified means a capture was attempted before a successful
// Probe. Callers must gate capture on the self-test.
var ErrNotVerified = errors.New("camera: bus not verified")

// Resolution selects one of the module's fixed JPEG presets.
type Resolution int

const (
	Res320x240 Resolution = iota
	Res640x480
)

func (r Resolution) String() string {
	switch r {
	case Res320x240:
		return "320x240"
	case Res640x480:
		return "640x480"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// Camera is the handle to the attached sensor module. It owns the bus
// for its lifetime; create one at startup and keep it.
type Camera struct {
	bus          Bus
	clock        Clock
	res          Resolution
	verified     bool
	pollTimeout  time.Duration
	pollInterval time.Duration
}

const (
	defaultPollTimeout  = 2000 * time.Millisecond
	defaultPollInterval = 5 * time.Millisecond
)

func New(bus Bus) *Camera {
	return &Camera{
		bus:          bus,
		clock:        systemClock{},
		res:          Res320x240,
		pollTimeout:  defaultPollTimeout,
		pollInterval: defaultPollInterval,
	}
}

// Probe runs the register round-trip self-test: write a sentinel to the
// scratch register and read it back. This is the only correctness check
// before captures are attempted; until it passes every capture entry
// point returns ErrNotVerified.
func (c *Camera) Probe() error {
	if err := c.bus.WriteRegister(regTest1, testPattern); err != nil {
		return fmt.Errorf("camera: self-test write: %w", err)
	}
	v, err := c.bus.ReadRegister(regTest1)
	if err != nil {
		return fmt.Errorf("camera: self-test read: %w", err)
	}
	if v != testPattern {
		return fmt.Errorf("%w: wrote 0x%02X, read 0x%02X", ErrBusVerification, testPattern, v)
	}
	c.verified = true
	return nil
}

// Verified reports whether the bus self-test has passed.
func (c *Camera) Verified() bool { return c.verified }

// Resolution returns the active preset.
func (c *Camera) Resolution() Resolution { return c.res }

// SetResolution switches between the two fixed JPEG presets.
func (c *Camera) SetResolution(r Resolution) error {
	if !c.verified {
		return ErrNotVerified
	}
	switch r {
	case Res320x240, Res640x480:
	default:
		return fmt.Errorf("camera: unknown resolution preset %d", int(r))
	}
	if err := c.bus.WriteRegister(regSizePreset, byte(r)); err != nil {
		return fmt.Errorf("camera: set resolution: %w", err)
	}
	c.res = r
	return nil
}

// clearDone flushes the FIFO and drops the capture-done flag. Running
// it on every exit path is what keeps one failed capture from
// corrupting the next.
func (c *Camera) clearDone() error {
	return c.bus.WriteRegister(regFIFOCtrl, maskFIFOClear)
}

// fifoLength reads the hardware-declared frame byte length.
func (c *Camera) fifoLength() (uint32, error) {
	lo, err := c.bus.ReadRegister(regFIFOSize1)
	if err != nil {
		return 0, err
	}
	mid, err := c.bus.ReadRegister(regFIFOSize2)
	if err != nil {
		return 0, err
	}
	hi, err := c.bus.ReadRegister(regFIFOSize3)
	if err != nil {
		return 0, err
	}
	return uint32(hi&0x7F)<<16 | uint32(mid)<<8 | uint32(lo), nil
}
