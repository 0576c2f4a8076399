// Package sensors wraps the climate and water-level hardware behind
// small interfaces so the control loop can be exercised without a Pi.
package sensors

import (
	"fmt"
	"time"
)

// Climate is the temperature/humidity sensor. Satisfied by gobot's
// i2c.SHT2xDriver.
type Climate interface {
	Temperature() (float32, error)
	Humidity() (float32, error)
}

// Reading is one climate sample.
type Reading struct {
	Temperature float32
	Humidity    float32
}

// ReadClimate polls the sensor with a bounded retry loop; the I2C bus
// on a breadboard rig drops a read now and then.
func ReadClimate(c Climate, attempts int, retryWait time.Duration) (Reading, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(retryWait)
		}
		temp, err := c.Temperature()
		if err != nil {
			lastErr = err
			continue
		}
		hum, err := c.Humidity()
		if err != nil {
			lastErr = err
			continue
		}
		return Reading{Temperature: temp, Humidity: hum}, nil
	}
	return Reading{}, fmt.Errorf("sensor read failed after %d attempts: %w", attempts, lastErr)
}

// AnalogReader reads one ADC channel. Satisfied by gobot's
// spi.MCP3008Driver.
type AnalogReader interface {
	Read(channel int) (int, error)
}

// WaterLevel converts the analogue level probe on an MCP3008 channel to
// a percentage between two calibrated raw readings.
type WaterLevel struct {
	Reader   AnalogReader
	Channel  int
	RawEmpty int // ADC reading with the tank empty
	RawFull  int // ADC reading with the tank full
}

// Percent reads the probe and scales to 0..100, clamped.
func (w WaterLevel) Percent() (float64, error) {
	raw, err := w.Reader.Read(w.Channel)
	if err != nil {
		return 0, fmt.Errorf("water level read: %w", err)
	}
	span := w.RawFull - w.RawEmpty
	if span == 0 {
		return 0, fmt.Errorf("water level not calibrated: empty == full == %d", w.RawEmpty)
	}
	pct := float64(raw-w.RawEmpty) / float64(span) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}
