package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/middleware"
	"github.com/atinyakov/asrcollect/internal/session"
	"go.uber.org/zap"
)

// Title heads every page.
const Title = "Kashmiri ASR Data Collection"

const (
	modeLabel      = "label"
	modeContribute = "contribute"
	methodRecord   = "record"
)

// PageHandler serves the HTML views. Form posts re-render the view with a
// confirmation or error, except login, which redirects to the labeling view.
type PageHandler struct {
	AuthService    AuthService
	SampleService  SampleService
	Sessions       Sessions
	MaxUploadBytes int64
	Log            *zap.Logger
}

type sampleView struct {
	ID       string
	AudioURL string
}

type pageData struct {
	Title       string
	User        *session.Session
	Mode        string
	Method      string
	AuthChoice  string
	Sample      *sampleView
	Success     string
	Error       string
	Info        string
	MaxUploadMB int64
}

func (h *PageHandler) newPage(r *http.Request) *pageData {
	d := &pageData{Title: Title, MaxUploadMB: h.MaxUploadBytes >> 20}
	if s, ok := middleware.SessionFromContext(r.Context()); ok {
		d.User = &s
	}
	return d
}

// Index handles GET /. Without a session it shows the login view; with one,
// the view picked by ?mode.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	d := h.newPage(r)
	if d.User == nil {
		d.AuthChoice = r.URL.Query().Get("choice")
		h.render(w, http.StatusOK, "login", d)
		return
	}
	if r.URL.Query().Get("mode") == modeContribute {
		h.renderContribute(w, http.StatusOK, r.URL.Query().Get("method"), d)
		return
	}
	h.renderLabel(w, r, http.StatusOK, d)
}

// Login handles POST /login.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	d := h.newPage(r)
	username, password := r.PostFormValue("username"), r.PostFormValue("password")
	if username == "" || password == "" {
		d.Error = msgMissingFields
		h.render(w, http.StatusBadRequest, "login", d)
		return
	}

	u, err := h.AuthService.Login(r.Context(), username, password)
	if err == nil {
		err = h.Sessions.Start(w, u.ID, u.Username)
	}
	if err != nil {
		h.logUnexpected(err)
		d.Error = userMessage(err, msgMissingFields)
		h.render(w, common.HTTPStatusFromError(err), "login", d)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Register handles POST /register.
func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	d := h.newPage(r)
	d.AuthChoice = "register"
	username, password := r.PostFormValue("username"), r.PostFormValue("password")

	_, err := h.AuthService.Register(r.Context(), username, password)
	if err != nil {
		h.logUnexpected(err)
		d.Error = userMessage(err, msgMissingFields)
		h.render(w, common.HTTPStatusFromError(err), "login", d)
		return
	}
	d.AuthChoice = "login"
	d.Success = msgRegistered
	h.render(w, http.StatusOK, "login", d)
}

// Logout handles POST /logout.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Label handles POST /label and shows the next clip.
func (h *PageHandler) Label(w http.ResponseWriter, r *http.Request) {
	d := h.newPage(r)
	status := http.StatusOK
	err := h.SampleService.SubmitTranscription(r.Context(), d.User.UserID, r.PostFormValue("sample_id"), r.PostFormValue("text"))
	if err != nil {
		h.logUnexpected(err)
		d.Error = userMessage(err, msgEmptyText)
		status = common.HTTPStatusFromError(err)
	} else {
		d.Success = msgTranscribed
	}
	h.renderLabel(w, r, status, d)
}

// Contribute handles POST /contribute, the multipart upload form.
func (h *PageHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	d := h.newPage(r)
	status := http.StatusOK
	if _, err := contributeUpload(w, r, h.SampleService, h.MaxUploadBytes); err != nil {
		h.logUnexpected(err)
		d.Error = userMessage(err, msgMissingContrib)
		status = common.HTTPStatusFromError(err)
	} else {
		d.Success = msgContributed
	}
	h.renderContribute(w, status, "upload", d)
}

// RedirectToLogin sends anonymous browsers to the login view.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) renderLabel(w http.ResponseWriter, r *http.Request, status int, d *pageData) {
	d.Mode = modeLabel
	s, err := h.SampleService.NextUnlabeled(r.Context(), d.User.UserID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		d.Info = msgNoSamples
	case err != nil:
		h.logUnexpected(err)
		d.Error = msgInternal
		status = http.StatusInternalServerError
	default:
		d.Sample = &sampleView{ID: s.ID, AudioURL: audioURL(s.ID)}
	}
	h.render(w, status, "label", d)
}

func (h *PageHandler) renderContribute(w http.ResponseWriter, status int, method string, d *pageData) {
	d.Mode = modeContribute
	d.Method = method
	h.render(w, status, "contribute", d)
}

func (h *PageHandler) render(w http.ResponseWriter, status int, page string, d *pageData) {
	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "layout", d); err != nil {
		orNop(h.Log).Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) logUnexpected(err error) {
	if common.HTTPStatusFromError(err) == http.StatusInternalServerError {
		orNop(h.Log).Error("request failed", zap.Error(err))
	}
}
