package http

import (
	"net/http"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
)

// NewRouter mounts the HTML views, the JSON API and audio playback.
//
// Routes:
//
//	GET  /                                 login, labeling or contribution view
//	POST /login, /register, /logout        session forms
//	POST /label, /contribute               labeling and upload forms
//	GET  /audio/{id}                       audio playback
//	POST /api/register, /api/login, /api/logout
//	GET  /api/samples/next
//	POST /api/samples/{id}/transcription
//	POST /api/contributions                multipart upload
//	POST /api/recordings                   base64 browser recording
//	GET  /health
//
// The session token is read from the "jwt" cookie or a bearer header.
func NewRouter(
	authHandler *AuthHandler,
	sampleHandler *SampleHandler,
	pageHandler *PageHandler,
	tokenAuth *jwtauth.JWTAuth,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(jwtauth.Verify(tokenAuth, jwtauth.TokenFromCookie, jwtauth.TokenFromHeader))
	r.Use(middleware.Session)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles()))))

	// HTML views
	r.Get("/", pageHandler.Index)
	r.Post("/login", pageHandler.Login)
	r.Post("/register", pageHandler.Register)
	r.Post("/logout", pageHandler.Logout)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(RedirectToLogin))
		r.Post("/label", pageHandler.Label)
		r.Post("/contribute", pageHandler.Contribute)
	})

	// Audio playback, used by both the views and API clients.
	r.With(middleware.RequireSession(unauthorized)).Get("/audio/{id}", sampleHandler.Audio)

	r.Route("/api", func(r chi.Router) {
		r.With(chiMiddleware.AllowContentType("application/json")).Post("/register", authHandler.Register)
		r.With(chiMiddleware.AllowContentType("application/json")).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// Protected group: requires a valid session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(unauthorized))
			r.Get("/samples/next", sampleHandler.Next)
			r.With(chiMiddleware.AllowContentType("application/json")).Post("/samples/{id}/transcription", sampleHandler.Transcribe)
			r.With(chiMiddleware.AllowContentType("multipart/form-data")).Post("/contributions", sampleHandler.Contribute)
			r.With(chiMiddleware.AllowContentType("application/json")).Post("/recordings", sampleHandler.Record)
		})
	})

	return r
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	common.RespondWithError(w, http.StatusUnauthorized, "login required")
}
