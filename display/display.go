// Package display renders controller status onto a 16x2 character LCD.
package display

import "fmt"

// LCD is the subset of gobot's i2c.JHD1313M1Driver the panel uses.
type LCD interface {
	Clear() error
	Home() error
	Write(s string) error
	SetPosition(pos int) error
}

// Status is what fits on the display.
type Status struct {
	Temperature float32
	Humidity    float32
	LevelPct    float64
	PumpOn      bool
	CameraOK    bool
}

const lineWidth = 16

// Render formats the two display lines, each padded/cut to 16 chars.
func Render(s Status) (string, string) {
	pump := "OFF"
	if s.PumpOn {
		pump = "ON"
	}
	cam := "-"
	if s.CameraOK {
		cam = "C"
	}
	line1 := fmt.Sprintf("%5.1fC %5.1f%%RH", s.Temperature, s.Humidity)
	line2 := fmt.Sprintf("LVL%3.0f%% PMP %s %s", s.LevelPct, pump, cam)
	return pad(line1), pad(line2)
}

func pad(s string) string {
	if len(s) > lineWidth {
		return s[:lineWidth]
	}
	for len(s) < lineWidth {
		s += " "
	}
	return s
}

// Panel drives the LCD.
type Panel struct {
	lcd LCD
}

func NewPanel(lcd LCD) *Panel {
	return &Panel{lcd: lcd}
}

// Show writes both status lines. Full 16-char lines make a Clear
// unnecessary and avoid flicker.
func (p *Panel) Show(s Status) error {
	line1, line2 := Render(s)
	if err := p.lcd.Home(); err != nil {
		return err
	}
	if err := p.lcd.Write(line1); err != nil {
		return err
	}
	if err := p.lcd.SetPosition(lineWidth); err != nil {
		return err
	}
	return p.lcd.Write(line2)
}

// Message clears the display and shows a single line, used for boot
// and error states.
func (p *Panel) Message(msg string) error {
	if err := p.lcd.Clear(); err != nil {
		return err
	}
	if err := p.lcd.Home(); err != nil {
		return err
	}
	return p.lcd.Write(pad(msg))
}
