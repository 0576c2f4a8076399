// camdump periodically captures a frame from the SPI camera and dumps
// it over a serial port, framed as:
//
//	CAP_START <length>\n
//	<jpeg bytes>
//	\nCAP_DONE\n
//
// The receiving end is typically a logger or a second board with no
// network. Reads are paced to the serial baud rate so the scanner never
// outruns the port.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"go.bug.st/serial"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/aimlessaugustus/iot-agriculture/camera"
)

// serialMaxLen is deliberately tolerant: the serial path has no browser
// on the other end, so oversized frames only cost transfer time.
const serialMaxLen = 512 * 1024

func main() {
	portName := flag.String("port", "/dev/serial0", "serial port device")
	baud := flag.Int("baud", 115200, "serial baud rate")
	interval := flag.Duration("interval", 10*time.Second, "capture interval")
	maxLen := flag.Uint("max", serialMaxLen, "frame length upper bound in bytes")
	spiBus := flag.Int("spi-bus", 0, "SPI bus number")
	spiChip := flag.Int("spi-chip", 0, "SPI chip-select number")
	csPin := flag.String("cs", "22", "camera chip-select GPIO pin")
	flag.Parse()

	r := raspi.NewAdaptor()
	if err := r.Connect(); err != nil {
		log.Fatalln("Error connecting to adaptor:", err)
	}
	defer r.Finalize()

	conn, err := r.GetSpiConnection(*spiBus, *spiChip, 0, 8, 1_000_000)
	if err != nil {
		log.Fatalln("Error opening SPI connection:", err)
	}

	cs := gpio.NewDirectPinDriver(r, *csPin)
	if err := cs.Start(); err != nil {
		log.Fatalln("Error starting chip-select pin:", err)
	}

	cam := camera.New(camera.NewSPIBus(conn, cs))
	if err := cam.Probe(); err != nil {
		log.Fatalln("Camera self-test failed:", err)
	}
	log.Println("Camera self-test passed, resolution", cam.Resolution())

	port, err := serial.Open(*portName, &serial.Mode{BaudRate: *baud})
	if err != nil {
		log.Fatalf("Error opening serial port %s: %v", *portName, err)
	}
	defer port.Close()

	// One byte is ten bits on the wire (start + 8 data + stop); pacing
	// the FIFO reads to that rate keeps the port's buffer shallow.
	pacing := time.Duration(10 * int64(time.Second) / int64(*baud))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for ; ; <-ticker.C {
		if err := dumpFrame(cam, port, uint32(*maxLen), pacing); err != nil {
			log.Println("Capture failed:", err)
		}
	}
}

func dumpFrame(cam *camera.Camera, port io.Writer, maxLen uint32, pacing time.Duration) error {
	cr, err := cam.Capture(maxLen)
	if err != nil {
		return err
	}
	if cr.TimedOut {
		log.Println("Capture-done flag never rose, proceeding with declared length", cr.Length)
	}
	switch cr.Outcome {
	case camera.OutcomeZeroLength:
		log.Println("Skipping zero-length frame")
		return nil
	case camera.OutcomeTooLarge:
		log.Printf("Skipping oversized frame: %d bytes (bound %d)", cr.Length, maxLen)
		return nil
	}

	if _, err := fmt.Fprintf(port, "CAP_START %d\n", cr.Length); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	sr, err := cam.CopyFrame(cr.Length, byteWriter{port}, camera.ScanOptions{InterByteDelay: pacing})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(port, "\nCAP_DONE\n"); err != nil {
		return fmt.Errorf("writing frame trailer: %w", err)
	}

	switch {
	case sr.Emitted == 0:
		log.Printf("No JPEG markers in %d-byte frame", cr.Length)
	case sr.Truncated():
		log.Printf("Frame truncated: declared %d, emitted %d without EOI", cr.Length, sr.Emitted)
	default:
		log.Printf("Sent frame: declared %d, emitted %d", cr.Length, sr.Emitted)
	}
	return nil
}

// byteWriter adapts the unbuffered serial port to the scanner's
// byte-at-a-time sink.
type byteWriter struct {
	w io.Writer
}

func (b byteWriter) WriteByte(c byte) error {
	_, err := b.w.Write([]byte{c})
	return err
}
