package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/form/v4"

	"github.com/aimlessaugustus/iot-agriculture/camera"
)

func testApp() *Application {
	return &Application{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		FormDecoder: form.NewDecoder(),
		Status: func() DeviceStatus {
			t := float32(21.5)
			h := float32(64.0)
			l := 83.0
			return DeviceStatus{
				Connected:   true,
				IP:          "192.168.1.20",
				Temperature: &t,
				Humidity:    &h,
				Level:       &l,
				Pump:        1,
				PumpOver:    "no override",
				Camera:      "ok",
			}
		},
	}
}

type fakeSnapshotter struct {
	enabled   bool
	capture   camera.CaptureResult
	frame     []byte
	err       error
	skipBegin bool // misbehave: report Ready without streaming
}

func (f *fakeSnapshotter) Enabled() bool { return f.enabled }

func (f *fakeSnapshotter) Snapshot(begin func(uint32) io.Writer) (Snapshot, error) {
	snap := Snapshot{Capture: f.capture}
	if f.err != nil {
		return snap, f.err
	}
	if f.capture.Outcome != camera.OutcomeReady || f.skipBegin {
		return snap, nil
	}
	w := begin(f.capture.Length)
	n, err := w.Write(f.frame)
	snap.Scan = camera.ScanResult{
		Consumed: f.capture.Length,
		Emitted:  uint32(n),
		FoundSOI: n > 0,
		FoundEOI: n == len(f.frame),
	}
	return snap, err
}

func TestPing(t *testing.T) {
	rr := httptest.NewRecorder()
	ping(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("ping: %d %q", rr.Code, rr.Body.String())
	}
}

func TestStatusJSON(t *testing.T) {
	app := testApp()
	rr := httptest.NewRecorder()
	app.statusJSON(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got DeviceStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Connected || got.IP != "192.168.1.20" || got.Camera != "ok" {
		t.Errorf("status = %+v", got)
	}
}

func TestSensorJSONNullsWhenStale(t *testing.T) {
	app := testApp()
	app.Status = func() DeviceStatus { return DeviceStatus{} }
	rr := httptest.NewRecorder()
	app.sensorJSON(rr, httptest.NewRequest(http.MethodGet, "/sensor", nil))

	var got map[string]*float64
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["temperature"] != nil || got["humidity"] != nil {
		t.Errorf("expected nulls before first reading, got %s", rr.Body.String())
	}
}

func TestTimeJSON(t *testing.T) {
	app := testApp()
	app.Location = time.UTC
	rr := httptest.NewRecorder()
	app.timeJSON(rr, httptest.NewRequest(http.MethodGet, "/time", nil))

	var got map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, got["datetime"]); err != nil {
		t.Errorf("datetime %q not RFC3339: %v", got["datetime"], err)
	}
}

func TestCaptureDisabled(t *testing.T) {
	app := testApp()
	app.Snapshots = &fakeSnapshotter{enabled: false}
	rr := httptest.NewRecorder()
	app.capture(rr, httptest.NewRequest(http.MethodGet, "/capture", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestCaptureNoSnapshotter(t *testing.T) {
	app := testApp()
	rr := httptest.NewRecorder()
	app.capture(rr, httptest.NewRequest(http.MethodGet, "/capture", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestCaptureOutcomes(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}
	tests := []struct {
		name     string
		capture  camera.CaptureResult
		wantCode int
		wantBody []byte
	}{
		{"ready", camera.CaptureResult{Outcome: camera.OutcomeReady, Length: 8}, http.StatusOK, frame},
		{"zero length", camera.CaptureResult{Outcome: camera.OutcomeZeroLength}, http.StatusNoContent, nil},
		{"too large", camera.CaptureResult{Outcome: camera.OutcomeTooLarge, Length: 600000}, http.StatusRequestEntityTooLarge, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApp()
			app.Snapshots = &fakeSnapshotter{enabled: true, capture: tt.capture, frame: frame}
			rr := httptest.NewRecorder()
			app.capture(rr, httptest.NewRequest(http.MethodGet, "/capture", nil))

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
					t.Errorf("Content-Type = %q", ct)
				}
				if got := rr.Header().Get("X-Fifo-Length"); got != "8" {
					t.Errorf("X-Fifo-Length = %q, want 8", got)
				}
				if rr.Body.String() != string(tt.wantBody) {
					t.Errorf("body = % X, want % X", rr.Body.Bytes(), tt.wantBody)
				}
			}
		})
	}
}

func TestCaptureReadyWithoutStreamAnswersEmpty(t *testing.T) {
	app := testApp()
	app.Snapshots = &fakeSnapshotter{
		enabled:   true,
		capture:   camera.CaptureResult{Outcome: camera.OutcomeReady, Length: 8},
		skipBegin: true,
	}
	rr := httptest.NewRecorder()
	app.capture(rr, httptest.NewRequest(http.MethodGet, "/capture", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rr.Body.String())
	}
}

func TestOverridePostValidation(t *testing.T) {
	app := testApp()
	form := url.Values{}
	form.Set("device", "toaster")
	form.Set("value", "on")

	req := httptest.NewRequest(http.MethodPost, "/override", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	app.overridePost(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestOverridePostApplies(t *testing.T) {
	app := testApp()
	app.SessionManager = scs.New()
	var gotDevice, gotValue string
	app.SetOverride = func(device, value string) error {
		gotDevice, gotValue = device, value
		return nil
	}

	form := url.Values{}
	form.Set("device", "pump")
	form.Set("value", "off")
	req := httptest.NewRequest(http.MethodPost, "/override", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	app.SessionManager.LoadAndSave(http.HandlerFunc(app.overridePost)).ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if gotDevice != "pump" || gotValue != "off" {
		t.Errorf("override = %s/%s, want pump/off", gotDevice, gotValue)
	}
}
