package camera

// ArduChip register map for the SPI camera module. Register reads and
// writes share the address space; bit 7 of the address selects a write.
const (
	regTest1       = 0x00 // scratch register used for the bus self-test
	regCaptureCtrl = 0x01 // frames to capture per trigger (n-1)
	regSizePreset  = 0x02 // resolution preset selector
	regFIFOCtrl    = 0x04 // FIFO flush / start / done-flag control
	regStatus      = 0x41 // trigger status bits
	regFIFOSize1   = 0x42 // FIFO length, low byte
	regFIFOSize2   = 0x43 // FIFO length, mid byte
	regFIFOSize3   = 0x44 // FIFO length, high byte (7 bits valid)

	cmdBurstRead  = 0x3C // continuous FIFO read while chip select is held
	cmdSingleRead = 0x3D

	maskFIFOClear   = 0x01 // flushes the FIFO and clears the done flag
	maskFIFOStart   = 0x02
	maskCaptureDone = 0x08

	writeBit = 0x80

	// testPattern is written to regTest1 and read back to verify the
	// bus wiring before any capture is attempted.
	testPattern = 0x55
)

// jpegSOI / jpegEOI are the JPEG framing markers the burst scanner
// looks for in the raw FIFO stream.
const (
	jpegMarker byte = 0xFF
	jpegSOI    byte = 0xD8
	jpegEOI    byte = 0xD9
)
