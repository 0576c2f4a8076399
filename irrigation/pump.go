// Package irrigation holds the pump control logic: two-threshold
// hysteresis on humidity with a water-reserve lockout, plus the manual
// override handling used by the MQTT and dashboard controls.
package irrigation

import "sync"

// Override values follow the wire format of the control topics.
const (
	OverrideOn   = "on"
	OverrideOff  = "off"
	OverrideAuto = "no override"
)

// Thresholds configures the pump controller. The pump starts when
// humidity drops below Low and stops once it climbs above High; between
// the two it keeps its previous state. MinLevelPct is the water-tank
// reserve below which the pump is locked out so it never runs dry.
type Thresholds struct {
	LowHumidity  float32 `json:"low_humidity"`
	HighHumidity float32 `json:"high_humidity"`
	MinLevelPct  float64 `json:"min_level_pct"`
}

// Pump is the hysteresis state machine for the relay-driven pump. The
// mutex covers threshold updates, which arrive from the MQTT config
// callback goroutine while the control tick is reading.
type Pump struct {
	mu  sync.Mutex
	cfg Thresholds
	on  bool
}

func NewPump(cfg Thresholds) *Pump {
	return &Pump{cfg: cfg}
}

// Thresholds returns the active configuration.
func (p *Pump) Thresholds() Thresholds {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetThresholds applies a config update from the control topic.
func (p *Pump) SetThresholds(cfg Thresholds) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// On reports the current pump state.
func (p *Pump) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

// Next advances the state machine with a fresh sensor reading and the
// active override, returning the desired relay state. The dry-run
// lockout beats everything, overrides included: a pump with no water is
// a dead pump.
func (p *Pump) Next(humidity float32, levelPct float64, override string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if levelPct < p.cfg.MinLevelPct {
		p.on = false
		return p.on
	}

	switch override {
	case OverrideOn:
		p.on = true
	case OverrideOff:
		p.on = false
	default:
		if humidity < p.cfg.LowHumidity {
			p.on = true
		} else if humidity > p.cfg.HighHumidity {
			p.on = false
		}
		// Inside the band the previous state holds.
	}
	return p.on
}
