package sensors

import (
	"errors"
	"testing"
)

type flakyClimate struct {
	failFirst int
	calls     int
}

func (c *flakyClimate) Temperature() (float32, error) {
	c.calls++
	if c.calls <= c.failFirst {
		return 0, errors.New("i2c read error")
	}
	return 21.5, nil
}

func (c *flakyClimate) Humidity() (float32, error) { return 64.2, nil }

func TestReadClimateRetries(t *testing.T) {
	c := &flakyClimate{failFirst: 2}
	r, err := ReadClimate(c, 3, 0)
	if err != nil {
		t.Fatalf("ReadClimate: %v", err)
	}
	if r.Temperature != 21.5 || r.Humidity != 64.2 {
		t.Errorf("reading = %+v", r)
	}
}

func TestReadClimateGivesUp(t *testing.T) {
	c := &flakyClimate{failFirst: 10}
	if _, err := ReadClimate(c, 3, 0); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if c.calls != 3 {
		t.Errorf("attempts = %d, want 3", c.calls)
	}
}

type fixedADC struct {
	value int
	err   error
}

func (a fixedADC) Read(int) (int, error) { return a.value, a.err }

func TestWaterLevelPercent(t *testing.T) {
	tests := []struct {
		raw  int
		want float64
	}{
		{100, 0},
		{900, 100},
		{500, 50},
		{50, 0},     // below empty clamps
		{1000, 100}, // above full clamps
	}
	for _, tt := range tests {
		w := WaterLevel{Reader: fixedADC{value: tt.raw}, RawEmpty: 100, RawFull: 900}
		got, err := w.Percent()
		if err != nil {
			t.Fatalf("Percent(%d): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("Percent(%d) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestWaterLevelUncalibrated(t *testing.T) {
	w := WaterLevel{Reader: fixedADC{value: 5}, RawEmpty: 100, RawFull: 100}
	if _, err := w.Percent(); err == nil {
		t.Fatal("expected calibration error")
	}
}

func TestWaterLevelReadError(t *testing.T) {
	w := WaterLevel{Reader: fixedADC{err: errors.New("spi down")}, RawEmpty: 0, RawFull: 1023}
	if _, err := w.Percent(); err == nil {
		t.Fatal("expected read error")
	}
}
