package web

import (
	"net/http"

	"github.com/justinas/alice"
)

// Routes assembles the handler chains. The JSON/JPEG device API is
// unauthenticated like the original firmware's endpoints; the dashboard
// and override form sit behind the session login.
func (app *Application) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", ping)
	mux.HandleFunc("GET /status", app.statusJSON)
	mux.HandleFunc("GET /sensor", app.sensorJSON)
	mux.HandleFunc("GET /time", app.timeJSON)
	mux.HandleFunc("GET /capture", app.capture)

	dynamic := alice.New(app.SessionManager.LoadAndSave, noSurf, app.authenticate)
	mux.Handle("GET /{$}", dynamic.ThenFunc(app.home))
	mux.Handle("GET /user/login", dynamic.ThenFunc(app.userLogin))
	mux.Handle("POST /user/login", dynamic.ThenFunc(app.userLoginPost))

	protected := dynamic.Append(app.requireAuthentication)
	mux.Handle("POST /override", protected.ThenFunc(app.overridePost))
	mux.Handle("POST /user/logout", protected.ThenFunc(app.userLogoutPost))

	standard := alice.New(app.recoverPanic, app.logRequest, securityHeaders)
	return standard.Then(mux)
}
