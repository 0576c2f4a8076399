package camera

import (
	"fmt"
	"sync"
)

// Bus is the chip-select-gated control bus to the camera module. Every
// method is one complete transaction: chip select is asserted on entry
// and released on every exit path, so another device sharing the bus
// (the water-level ADC sits on the same SPI bus) can never observe a
// half-finished exchange.
type Bus interface {
	WriteRegister(addr, value byte) error
	ReadRegister(addr byte) (byte, error)

	// Burst opens a single burst-read transaction: chip select is
	// asserted, the burst command is issued once, and the returned
	// reader yields FIFO bytes one at a time until Close releases
	// the bus. No other transaction may run until Close.
	Burst() (BurstReader, error)
}

// BurstReader streams bytes out of an open burst transaction. Each byte
// is clocked off the bus exactly once; there is no rewind.
type BurstReader interface {
	ReadByte() (byte, error)
	Close() error
}

// spiConn is the subset of gobot's spi.Connection the bus uses.
type spiConn interface {
	ReadCommandData(command []byte, data []byte) error
}

// csPin is the chip-select line, driven directly as a GPIO because the
// burst read must hold it asserted across many transfers. Satisfied by
// gobot's gpio.DirectPinDriver. Active low.
type csPin interface {
	DigitalWrite(level byte) error
}

// burstChunk is how many FIFO bytes are clocked per SPI transfer while
// chip select stays asserted. Keeps memory fixed regardless of frame
// size.
const burstChunk = 256

// SPIBus drives the camera over an SPI connection with a GPIO-driven
// chip-select line. A single mutex serializes register transactions and
// burst reads; the mutex is held for the whole lifetime of an open
// BurstReader.
type SPIBus struct {
	mu   sync.Mutex
	conn spiConn
	cs   csPin
}

func NewSPIBus(conn spiConn, cs csPin) *SPIBus {
	return &SPIBus{conn: conn, cs: cs}
}

func (b *SPIBus) WriteRegister(addr, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchange([]byte{addr | writeBit, value}, make([]byte, 2))
}

func (b *SPIBus) ReadRegister(addr byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rx := make([]byte, 2)
	if err := b.exchange([]byte{addr &^ writeBit, 0x00}, rx); err != nil {
		return 0, err
	}
	return rx[1], nil
}

// exchange runs one chip-select-gated transfer. The deassert is paired
// with the assert even when the transfer fails.
func (b *SPIBus) exchange(tx, rx []byte) error {
	if err := b.cs.DigitalWrite(0); err != nil {
		return fmt.Errorf("assert chip select: %w", err)
	}
	err := b.conn.ReadCommandData(tx, rx)
	if cerr := b.cs.DigitalWrite(1); err == nil && cerr != nil {
		err = fmt.Errorf("release chip select: %w", cerr)
	}
	return err
}

func (b *SPIBus) Burst() (BurstReader, error) {
	b.mu.Lock()
	if err := b.cs.DigitalWrite(0); err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("assert chip select: %w", err)
	}
	// The burst command is sent exactly once; everything clocked out
	// afterwards is FIFO data.
	if err := b.conn.ReadCommandData([]byte{cmdBurstRead}, make([]byte, 1)); err != nil {
		b.cs.DigitalWrite(1)
		b.mu.Unlock()
		return nil, err
	}
	return &spiBurst{bus: b}, nil
}

type spiBurst struct {
	bus    *SPIBus
	buf    [burstChunk]byte
	n, pos int
	closed bool
}

func (r *spiBurst) ReadByte() (byte, error) {
	if r.closed {
		return 0, fmt.Errorf("burst read after close")
	}
	if r.pos >= r.n {
		// Refill: clock another chunk while chip select stays low.
		if err := r.bus.conn.ReadCommandData(nil, r.buf[:]); err != nil {
			return 0, err
		}
		r.n = len(r.buf)
		r.pos = 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *spiBurst) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.bus.cs.DigitalWrite(1)
	r.bus.mu.Unlock()
	if err != nil {
		return fmt.Errorf("release chip select: %w", err)
	}
	return nil
}
