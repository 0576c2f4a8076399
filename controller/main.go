// The irrigation controller firmware: reads the climate and water-level
// sensors, drives the pump relay and status LCD, captures camera
// snapshots for the dashboard, and publishes telemetry over MQTT.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/form/v4"

	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/drivers/spi"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/aimlessaugustus/iot-agriculture/camera"
	"github.com/aimlessaugustus/iot-agriculture/display"
	"github.com/aimlessaugustus/iot-agriculture/irrigation"
	"github.com/aimlessaugustus/iot-agriculture/mqtt"
	"github.com/aimlessaugustus/iot-agriculture/sensors"
	"github.com/aimlessaugustus/iot-agriculture/storage"
	"github.com/aimlessaugustus/iot-agriculture/web"
)

const (
	mqttTopicPrefix = "agri"
	tickInterval    = 10 * time.Second
	sensorRetries   = 3
	retryInterval   = 2 * time.Second
)

// controllerState is the shared snapshot of what the rig is doing,
// read by the HTTP status endpoints and written by the control loop.
type controllerState struct {
	mu sync.Mutex

	temperature *float32
	humidity    *float32
	level       *float64
	pump        int
	overrides   map[string]string
	camera      string // "ok", "degraded" or "disabled"
	errMsg      string

	dailyHighTemp float32
	dailyLowTemp  float32
	dailyHighHum  float32
	dailyLowHum   float32
	haveDaily     bool
}

func (s *controllerState) noteReading(temp, hum float32, level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = &temp
	s.humidity = &hum
	s.level = &level
	if !s.haveDaily {
		s.dailyHighTemp, s.dailyLowTemp = temp, temp
		s.dailyHighHum, s.dailyLowHum = hum, hum
		s.haveDaily = true
		return
	}
	if temp > s.dailyHighTemp {
		s.dailyHighTemp = temp
	}
	if temp < s.dailyLowTemp {
		s.dailyLowTemp = temp
	}
	if hum > s.dailyHighHum {
		s.dailyHighHum = hum
	}
	if hum < s.dailyLowHum {
		s.dailyLowHum = hum
	}
}

func (s *controllerState) resetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveDaily = false
}

func (s *controllerState) override(device string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides[device]
}

func (s *controllerState) setOverride(device, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.overrides[device]; !ok {
		return fmt.Errorf("unknown device %q", device)
	}
	switch value {
	case irrigation.OverrideOn, irrigation.OverrideOff, irrigation.OverrideAuto:
	default:
		return fmt.Errorf("unknown override value %q", value)
	}
	s.overrides[device] = value
	return nil
}

func (s *controllerState) setCamera(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = status
}

func (s *controllerState) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

func main() {
	addr := flag.String("addr", ":4000", "HTTP network address")
	dsn := flag.String("dsn", "sensor_data.db", "SQLite database file path")
	configPath := flag.String("config", "config.json", "configuration file path")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("loading timezone, falling back to UTC", "tz", cfg.Timezone, "error", err)
		location = time.UTC
	}

	store, err := storage.Open(*dsn)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := web.CreateSessionTable(store.DB()); err != nil {
		logger.Error("creating sessions table", "error", err)
		os.Exit(1)
	}
	if err := web.CreateUserTable(store.DB()); err != nil {
		logger.Error("creating users table", "error", err)
		os.Exit(1)
	}
	if cfg.AdminUser.Email != "" {
		if err := web.SeedAdmin(store.DB(), cfg.AdminUser); err != nil {
			logger.Error("seeding admin user", "error", err)
		}
	}

	templateCache, err := web.NewTemplateCache()
	if err != nil {
		logger.Error("building template cache", "error", err)
		os.Exit(1)
	}

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.New(store.DB())
	sessionManager.Lifetime = 12 * time.Hour

	state := &controllerState{
		overrides: map[string]string{
			"pump":   irrigation.OverrideAuto,
			"camera": irrigation.OverrideAuto,
		},
		camera: "disabled",
	}
	pump := irrigation.NewPump(cfg.Irrigation)

	// MQTT is best-effort: the rig keeps irrigating with the broker
	// down, it just goes quiet.
	mq, err := mqtt.Connect(mqtt.Config{
		BrokerURL:     cfg.MQTT.BrokerURL,
		ClientID:      cfg.MQTT.ClientID,
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		AutoReconnect: true,
		MaxRetries:    3,
		RetryInterval: retryInterval,
	})
	if err != nil {
		logger.Error("mqtt unavailable, continuing without it", "error", err)
		mq = nil
	}
	defer mq.Close()

	sendAlert := func(msg string) {
		log.Println("ALERT:", msg)
		if mq != nil {
			mq.Publish(mqttTopicPrefix+"/alerts", []byte(msg))
		}
	}

	// Hardware.
	r := raspi.NewAdaptor()
	sht2x := i2c.NewSHT2xDriver(r)
	lcd := i2c.NewJHD1313M1Driver(r)
	pumpRelay := gpio.NewRelayDriver(r, cfg.Pins.PumpRelay)
	cameraCS := gpio.NewDirectPinDriver(r, cfg.Pins.CameraCS)
	adc := spi.NewMCP3008Driver(r)

	panel := display.NewPanel(lcd)
	waterLevel := sensors.WaterLevel{
		Reader:   adc,
		Channel:  cfg.Level.Channel,
		RawEmpty: cfg.Level.RawEmpty,
		RawFull:  cfg.Level.RawFull,
	}

	// The HTTP server starts before camera bring-up finishes; the slot
	// answers "disabled" until the work function fills it in.
	snapshotSrc := &snapshotSlot{}

	app := &web.Application{
		Logger:         logger,
		Users:          &web.UserModel{DB: store.DB()},
		TemplateCache:  templateCache,
		FormDecoder:    form.NewDecoder(),
		SessionManager: sessionManager,
		Location:       location,
		SetOverride:    state.setOverride,
		Snapshots:      snapshotSrc,
		Status: func() web.DeviceStatus {
			state.mu.Lock()
			defer state.mu.Unlock()
			ip := localIP()
			cam := state.camera
			if state.overrides["camera"] == irrigation.OverrideOff {
				cam = "disabled"
			}
			return web.DeviceStatus{
				Connected:   ip != "",
				IP:          ip,
				Temperature: state.temperature,
				Humidity:    state.humidity,
				Level:       state.level,
				Pump:        state.pump,
				PumpOver:    state.overrides["pump"],
				Camera:      cam,
				Error:       state.errMsg,
			}
		},
	}

	work := func() {
		// Camera bring-up. A failed self-test is not fatal: the rig
		// degrades to the USB webcam if one is configured, or runs
		// headless otherwise.
		if cfg.Camera.Enabled {
			var snapshots web.Snapshotter
			conn, err := r.GetSpiConnection(cfg.SPI.Bus, cfg.SPI.Chip, 0, 8, 1_000_000)
			if err != nil {
				logger.Error("opening SPI connection", "error", err)
			} else {
				cam := camera.New(camera.NewSPIBus(conn, cameraCS))
				if err := cam.Probe(); err != nil {
					sendAlert("camera self-test failed: " + err.Error())
					logger.Error("camera self-test failed", "error", err)
				} else {
					logger.Info("camera self-test passed", "resolution", cam.Resolution())
					snapshots = &fifoSnapshots{cam: cam, maxLen: cfg.Camera.MaxHTTPLength}
					state.setCamera("ok")
				}
			}
			if snapshots == nil && cfg.Camera.FallbackDevice != "" {
				logger.Info("falling back to USB webcam", "device", cfg.Camera.FallbackDevice)
				snapshots = &webcamSnapshots{src: camera.WebcamSource{Device: cfg.Camera.FallbackDevice}}
				state.setCamera("degraded")
			}
			if snapshots != nil {
				snapshotSrc.set(&gatedSnapshots{
					inner:   snapshots,
					allowed: func() bool { return state.override("camera") != irrigation.OverrideOff },
				})
			}
		}

		if mq != nil {
			err := mq.Subscribe(mqttTopicPrefix+"/override", func(payload []byte) {
				var msg struct {
					PumpOver   string `json:"pump_over"`
					CameraOver string `json:"camera_over"`
				}
				if err := json.Unmarshal(payload, &msg); err != nil {
					log.Println("Error unmarshaling override JSON:", err)
					return
				}
				if msg.PumpOver != "" {
					if err := state.setOverride("pump", msg.PumpOver); err != nil {
						log.Println("Rejected pump override:", err)
					}
				}
				if msg.CameraOver != "" {
					if err := state.setOverride("camera", msg.CameraOver); err != nil {
						log.Println("Rejected camera override:", err)
					}
				}
			})
			if err != nil {
				logger.Error("subscribing to override topic", "error", err)
			}

			err = mq.Subscribe(mqttTopicPrefix+"/config", func(payload []byte) {
				var msg struct {
					LowHumidity  *float32 `json:"low_humidity"`
					HighHumidity *float32 `json:"high_humidity"`
					MinLevelPct  *float64 `json:"min_level_pct"`
				}
				if err := json.Unmarshal(payload, &msg); err != nil {
					log.Println("Error unmarshaling config JSON:", err)
					return
				}
				t := pump.Thresholds()
				if msg.LowHumidity != nil {
					t.LowHumidity = *msg.LowHumidity
				}
				if msg.HighHumidity != nil {
					t.HighHumidity = *msg.HighHumidity
				}
				if msg.MinLevelPct != nil {
					t.MinLevelPct = *msg.MinLevelPct
				}
				pump.SetThresholds(t)
				log.Printf("Updated irrigation thresholds: %+v", t)
			})
			if err != nil {
				logger.Error("subscribing to config topic", "error", err)
			}
		}

		if err := panel.Message("BOOTING"); err != nil {
			logger.Error("writing boot message to LCD", "error", err)
		}

		// Housekeeping: wipe the sensor log every 48 hours and reset
		// the daily extremes at midnight UTC.
		go func() {
			clearTicker := time.NewTicker(48 * time.Hour)
			defer clearTicker.Stop()

			now := time.Now().UTC()
			nextMidnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
			dailyTimer := time.NewTimer(nextMidnight.Sub(now))
			defer dailyTimer.Stop()

			for {
				select {
				case <-clearTicker.C:
					log.Println("Initiating 48-hour database clear...")
					if err := store.Clear(); err != nil {
						sendAlert("database clear failed: " + err.Error())
						state.setError("db clear failed")
					}
				case <-dailyTimer.C:
					log.Println("Resetting daily sensor extremes (00:00 UTC).")
					state.resetDaily()
					dailyTimer.Reset(24 * time.Hour)
				}
			}
		}()

		gobot.Every(tickInterval, func() {
			reading, err := sensors.ReadClimate(sht2x, sensorRetries, retryInterval)
			if err != nil {
				sendAlert("sensor read failed: " + err.Error())
				state.setError("sensor read failed")
				return
			}

			level, err := waterLevel.Percent()
			if err != nil {
				// No level reading means the dry-run lockout cannot be
				// trusted; treat the tank as empty.
				log.Println("Error reading water level:", err)
				state.setError("level read failed")
				level = 0
			} else {
				state.setError("")
			}

			state.noteReading(reading.Temperature, reading.Humidity, level)

			pumpOn := pump.Next(reading.Humidity, level, state.override("pump"))
			if pumpOn {
				if err := pumpRelay.On(); err != nil {
					log.Println("Error switching pump relay on:", err)
				}
			} else {
				if err := pumpRelay.Off(); err != nil {
					log.Println("Error switching pump relay off:", err)
				}
			}
			state.mu.Lock()
			if pumpOn {
				state.pump = 1
			} else {
				state.pump = 0
			}
			cameraOK := state.camera == "ok" && state.overrides["camera"] != irrigation.OverrideOff
			state.mu.Unlock()

			if err := panel.Show(display.Status{
				Temperature: reading.Temperature,
				Humidity:    reading.Humidity,
				LevelPct:    level,
				PumpOn:      pumpOn,
				CameraOK:    cameraOK,
			}); err != nil {
				log.Println("Error updating LCD:", err)
			}

			if err := store.InsertReading(reading.Temperature, reading.Humidity, level, time.Now()); err != nil {
				sendAlert("database insert error: " + err.Error())
				state.setError("db insert failed")
			}

			publishTelemetry(mq, state, pump, reading, level)
		})
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      app.Routes(),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("starting server", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}()

	robot := gobot.NewRobot("IrrigationController",
		[]gobot.Connection{r},
		[]gobot.Device{sht2x, lcd, pumpRelay, cameraCS, adc},
		work,
	)
	if err := robot.Start(); err != nil {
		logger.Error("starting robot", "error", err)
		os.Exit(1)
	}
}

func publishTelemetry(mq *mqtt.Client, state *controllerState, pump *irrigation.Pump, reading sensors.Reading, level float64) {
	if mq == nil {
		return
	}

	state.mu.Lock()
	sensorData := struct {
		Temperature   float32 `json:"temperature"`
		Humidity      float32 `json:"humidity"`
		Level         float64 `json:"level"`
		Timestamp     string  `json:"timestamp"`
		DailyHighTemp float32 `json:"daily_high_temp"`
		DailyLowTemp  float32 `json:"daily_low_temp"`
		DailyHighHum  float32 `json:"daily_high_humidity"`
		DailyLowHum   float32 `json:"daily_low_humidity"`
	}{
		Temperature:   reading.Temperature,
		Humidity:      reading.Humidity,
		Level:         level,
		Timestamp:     time.Now().Format(time.RFC3339),
		DailyHighTemp: state.dailyHighTemp,
		DailyLowTemp:  state.dailyLowTemp,
		DailyHighHum:  state.dailyHighHum,
		DailyLowHum:   state.dailyLowHum,
	}
	deviceState := struct {
		Pump     int    `json:"pump"`
		PumpOver string `json:"pump_over"`
		Camera   string `json:"camera"`
		Error    string `json:"error"`
	}{
		Pump:     state.pump,
		PumpOver: state.overrides["pump"],
		Camera:   state.camera,
		Error:    state.errMsg,
	}
	state.mu.Unlock()

	t := pump.Thresholds()
	configStatus := struct {
		LowHumidity  float32 `json:"low_humidity"`
		HighHumidity float32 `json:"high_humidity"`
		MinLevelPct  float64 `json:"min_level_pct"`
	}{t.LowHumidity, t.HighHumidity, t.MinLevelPct}

	for topic, v := range map[string]any{
		mqttTopicPrefix + "/sensors": sensorData,
		mqttTopicPrefix + "/devices": deviceState,
		mqttTopicPrefix + "/status":  configStatus,
	} {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Println("Error marshaling telemetry for", topic, ":", err)
			continue
		}
		mq.Publish(topic, payload)
	}
}

// localIP reports the outbound interface address, empty when the
// network is down. No packet is sent; UDP dial just resolves a route.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}
