package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aimlessaugustus/iot-agriculture/irrigation"
	"github.com/aimlessaugustus/iot-agriculture/web"
)

// Config is the JSON configuration file the controller reads at boot.
// Everything has a default so a missing file still boots a usable rig.
type Config struct {
	AdminUser web.AdminUser `json:"adminUser"`

	MQTT struct {
		BrokerURL string `json:"broker_url"`
		ClientID  string `json:"client_id"`
		Username  string `json:"username"`
		Password  string `json:"password"`
	} `json:"mqtt"`

	// Pins use gobot's physical header numbering.
	Pins struct {
		PumpRelay string `json:"pump_relay"`
		CameraCS  string `json:"camera_cs"`
	} `json:"pins"`

	SPI struct {
		Bus  int `json:"bus"`
		Chip int `json:"chip"`
	} `json:"spi"`

	Camera struct {
		Enabled        bool   `json:"enabled"`
		MaxHTTPLength  uint32 `json:"max_http_length"`
		FallbackDevice string `json:"fallback_device"`
	} `json:"camera"`

	Irrigation irrigation.Thresholds `json:"irrigation"`

	Level struct {
		Channel  int `json:"channel"`
		RawEmpty int `json:"raw_empty"`
		RawFull  int `json:"raw_full"`
	} `json:"level"`

	Timezone string `json:"timezone"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.MQTT.BrokerURL = "tcp://mos1:1883"
	cfg.MQTT.ClientID = "irrigation-controller"
	cfg.Pins.PumpRelay = "37"
	cfg.Pins.CameraCS = "22"
	cfg.SPI.Bus = 0
	cfg.Camera.Enabled = true
	cfg.Camera.MaxHTTPLength = 100 * 1024
	cfg.Irrigation = irrigation.Thresholds{
		LowHumidity:  55.0,
		HighHumidity: 70.0,
		MinLevelPct:  10.0,
	}
	cfg.Level.Channel = 0
	cfg.Level.RawEmpty = 120
	cfg.Level.RawFull = 860
	cfg.Timezone = "Europe/London"
	return cfg
}

// loadConfig reads the config file over the defaults. A missing file is
// not an error; a malformed one is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
