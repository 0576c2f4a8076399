// Package web is the controller's dashboard and device API: login-
// protected status page plus the JSON/JPEG endpoints the original
// firmware exposed (/status, /sensor, /time, /capture).
package web

import (
	"html/template"
	"io"
	"log/slog"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/form/v4"

	"github.com/aimlessaugustus/iot-agriculture/camera"
)

// Snapshot is the result of one snapshot attempt.
type Snapshot struct {
	Capture camera.CaptureResult
	Scan    camera.ScanResult
}

// Snapshotter produces one JPEG snapshot per call. When the capture is
// Ready, begin is invoked with the hardware-declared length and must
// return the sink the frame bytes are streamed to; for any other
// outcome begin is never called and the caller maps the outcome to its
// own reporting. Implementations serialize calls internally — the
// camera is one exclusively-owned resource.
type Snapshotter interface {
	Enabled() bool
	Snapshot(begin func(declaredLen uint32) io.Writer) (Snapshot, error)
}

// DeviceStatus is the controller state the status endpoints report.
// Sensor fields are nil until the first good reading.
type DeviceStatus struct {
	Connected   bool     `json:"connected"`
	IP          string   `json:"ip"`
	Temperature *float32 `json:"temperature"`
	Humidity    *float32 `json:"humidity"`
	Level       *float64 `json:"level"`
	Pump        int      `json:"pump"`
	PumpOver    string   `json:"pump_over"`
	Camera      string   `json:"camera"`
	Error       string   `json:"error"`
}

// Application holds the dependencies for the HTTP handlers, wired up
// once by the controller at startup.
type Application struct {
	Logger         *slog.Logger
	Users          *UserModel
	TemplateCache  map[string]*template.Template
	FormDecoder    *form.Decoder
	SessionManager *scs.SessionManager

	// Status snapshots the controller's current state.
	Status func() DeviceStatus
	// Snapshots is nil when the capture subsystem is disabled at
	// configuration time.
	Snapshots Snapshotter
	// SetOverride applies a manual device override ("pump", "on").
	SetOverride func(device, value string) error
	// Location is the civil-time zone for /time (Europe/London on
	// the original rig).
	Location *time.Location
}
