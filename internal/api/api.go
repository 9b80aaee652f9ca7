// Package api exposes task management over HTTP.
//
// Routes:
//
//	GET    /tasks[?status=]     task summaries
//	POST   /tasks               create a pending task
//	GET    /tasks/{id}          full task including jobs
//	DELETE /tasks/{id}          cancel (remove) a task
//	POST   /tasks/{id}/retry    return a failed or current task to pending
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/log"
	"github.com/felixgeelhaar/jacinta/internal/metrics"
	"github.com/felixgeelhaar/jacinta/internal/service"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Options configures the API handler.
type Options struct {
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

// MessageResponse is returned by operations without a resource body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Code        string   `json:"code,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type handler struct {
	svc    *service.TaskService
	logger *log.Logger
}

// New builds the API handler with request validation, CORS, logging and
// metrics middleware applied.
func New(svc *service.TaskService, opts Options) (http.Handler, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}

	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	h := &handler{svc: svc, logger: opts.Logger.With("component", "api")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", h.listTasks)
	mux.HandleFunc("POST /tasks", h.createTask)
	mux.HandleFunc("GET /tasks/{id}", h.getTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.cancelTask)
	mux.HandleFunc("POST /tasks/{id}/retry", h.retryTask)
	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPISpec)
	})

	var next http.Handler = mux
	next = validator.middleware(next)
	next = instrument(next, h.logger, opts.Metrics)
	next = corsHandler(opts.CORSOrigins).Handler(next)
	return next, nil
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]task.Summary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, errors.Wrap(errors.ErrCodeTaskInvalid, "invalid JSON body", err))
		return
	}

	t, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/tasks/"+t.ID)
	writeJSON(w, http.StatusCreated, t.Summary())
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Task %s cancelled", id)})
}

func (h *handler) retryTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", "method", r.Method, "path", r.URL.Path)
	}
	writeError(w, err)
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTaskInvalid:
		return http.StatusBadRequest
	case errors.ErrCodeTaskTransition, errors.ErrCodeTaskAlreadyClaimed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if je, ok := err.(*errors.JacintaError); ok {
		resp.Error = je.Message
		if je.Cause != nil {
			resp.Error += ": " + je.Cause.Error()
		}
		resp.Code = string(je.Code)
		resp.Suggestions = je.Suggestions
	} else if code := errors.CodeOf(err); code != "" {
		resp.Code = string(code)
	}
	writeJSON(w, statusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
