package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aimlessaugustus/iot-agriculture/camera"
	"github.com/aimlessaugustus/iot-agriculture/irrigation"
	"github.com/aimlessaugustus/iot-agriculture/web/validator"
)

func ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

func (app *Application) home(w http.ResponseWriter, r *http.Request) {
	data := app.newTemplateData(r)
	data.Status = app.Status()
	app.render(w, r, http.StatusOK, "home.html", data)
}

func (app *Application) statusJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app.Status())
}

func (app *Application) sensorJSON(w http.ResponseWriter, r *http.Request) {
	s := app.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"temperature": s.Temperature,
		"humidity":    s.Humidity,
		"level":       s.Level,
	})
}

func (app *Application) timeJSON(w http.ResponseWriter, r *http.Request) {
	loc := app.Location
	if loc == nil {
		loc = time.UTC
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"datetime": time.Now().In(loc).Format(time.RFC3339),
	})
}

// capture streams one JPEG snapshot. The response body is the
// marker-trimmed frame, sent chunked: the hardware-declared FIFO length
// counts bytes outside SOI..EOI too, so it is exposed only as a
// diagnostic header rather than a Content-Length that would make
// clients hang.
func (app *Application) capture(w http.ResponseWriter, r *http.Request) {
	if app.Snapshots == nil || !app.Snapshots.Enabled() {
		http.Error(w, "capture subsystem unavailable", http.StatusServiceUnavailable)
		return
	}

	started := false
	snap, err := app.Snapshots.Snapshot(func(declaredLen uint32) io.Writer {
		started = true
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Fifo-Length", strconv.FormatUint(uint64(declaredLen), 10))
		w.WriteHeader(http.StatusOK)
		return w
	})

	if started {
		// Headers are out; nothing left but to log what happened.
		if err != nil {
			app.Logger.Error("snapshot stream aborted", "error", err)
		}
		if snap.Scan.Truncated() {
			app.Logger.Warn("served truncated frame",
				"declared", snap.Capture.Length, "emitted", snap.Scan.Emitted)
		}
		if snap.Scan.Emitted == 0 {
			app.Logger.Warn("no JPEG markers in frame", "declared", snap.Capture.Length)
		}
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	switch snap.Capture.Outcome {
	case camera.OutcomeZeroLength:
		w.WriteHeader(http.StatusNoContent)
	case camera.OutcomeTooLarge:
		http.Error(w, "frame exceeds configured bound", http.StatusRequestEntityTooLarge)
	default:
		// A Ready outcome always streams through begin, so reaching
		// here means the snapshotter broke its contract. Answer empty
		// rather than invent a frame.
		app.Logger.Error("snapshot ready but no frame streamed", "declared", snap.Capture.Length)
		w.WriteHeader(http.StatusNoContent)
	}
}

type overrideForm struct {
	Device              string `form:"device"`
	Value               string `form:"value"`
	validator.Validator `form:"-"`
}

func (app *Application) overridePost(w http.ResponseWriter, r *http.Request) {
	var form overrideForm
	err := app.decodePostForm(r, &form)
	if err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}

	form.CheckField(validator.PermittedValue(form.Device, "pump", "camera"), "device", "Unknown device")
	form.CheckField(validator.PermittedValue(form.Value,
		irrigation.OverrideOn, irrigation.OverrideOff, irrigation.OverrideAuto), "value", "Unknown override value")
	if !form.Valid() {
		app.clientError(w, http.StatusUnprocessableEntity)
		return
	}

	if err := app.SetOverride(form.Device, form.Value); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.SessionManager.Put(r.Context(), "flash", "Override applied: "+form.Device+" → "+form.Value)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type userLoginForm struct {
	Email               string `form:"email"`
	Password            string `form:"password"`
	validator.Validator `form:"-"`
}

func (app *Application) userLogin(w http.ResponseWriter, r *http.Request) {
	data := app.newTemplateData(r)
	data.Form = userLoginForm{}
	app.render(w, r, http.StatusOK, "login.html", data)
}

func (app *Application) userLoginPost(w http.ResponseWriter, r *http.Request) {
	var form userLoginForm
	err := app.decodePostForm(r, &form)
	if err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}

	form.CheckField(validator.NotBlank(form.Email), "email", "This field cannot be blank")
	form.CheckField(validator.Matches(form.Email, validator.EmailRX), "email", "This field must be a valid email address")
	form.CheckField(validator.NotBlank(form.Password), "password", "This field cannot be blank")
	if !form.Valid() {
		data := app.newTemplateData(r)
		data.Form = form
		app.render(w, r, http.StatusUnprocessableEntity, "login.html", data)
		return
	}

	id, err := app.Users.Authenticate(form.Email, form.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			form.AddNonFieldError("Email or password is incorrect")
			data := app.newTemplateData(r)
			data.Form = form
			app.render(w, r, http.StatusUnprocessableEntity, "login.html", data)
		} else {
			app.serverError(w, r, err)
		}
		return
	}
	err = app.SessionManager.RenewToken(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.SessionManager.Put(r.Context(), "authenticatedUserID", id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *Application) userLogoutPost(w http.ResponseWriter, r *http.Request) {
	err := app.SessionManager.RenewToken(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.SessionManager.Remove(r.Context(), "authenticatedUserID")
	app.SessionManager.Put(r.Context(), "flash", "You've been logged out successfully!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
