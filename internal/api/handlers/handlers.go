package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/assistant"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/jobs"
)

// MaxVoiceBytes bounds an uploaded voice message.
const MaxVoiceBytes = 20 << 20

// Assistant is the subset of assistant.Service served over HTTP.
type Assistant interface {
	HandleText(ctx context.Context, userID int64, utterance string) (assistant.Reply, error)
	HandleVoice(ctx context.Context, userID int64, audio []byte, mimeType string) (assistant.Reply, error)
	Confirm(ctx context.Context, userID int64) (assistant.Reply, error)
	Undo(ctx context.Context, userID int64) (assistant.Reply, error)
	Reset(ctx context.Context, userID int64) (assistant.Reply, error)
	Backup(ctx context.Context, userID int64) (assistant.Reply, error)
	Restore(ctx context.Context, userID int64, location string) (assistant.Reply, error)
	Search(ctx context.Context, userID int64, q string) (assistant.Reply, error)
	Find(ctx context.Context, userID int64, term string) (assistant.Reply, error)
	History(ctx context.Context, userID int64) (assistant.Reply, error)
	Report(ctx context.Context, userID int64, cmd domain.Command, utterance string) (assistant.Reply, error)
}

var _ Assistant = (*assistant.Service)(nil)

// AssistantHandler serves operator messages and commands.
type AssistantHandler struct {
	svc Assistant
	log zerolog.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(svc Assistant, log zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{svc: svc, log: log}
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, assistant.ErrEmptyUtterance), errors.Is(err, domain.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNothingToUndo), errors.Is(err, domain.ErrNothingPending),
		errors.Is(err, domain.ErrLedgerNotEmpty):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUndoExpired):
		return http.StatusGone
	case errors.Is(err, assistant.ErrNoTranscriber):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (h *AssistantHandler) respond(w http.ResponseWriter, r *http.Request, op string, reply assistant.Reply, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("op", op).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("request failed")
	}
	middleware.WriteJSON(w, status, reply)
}

func operator(r *http.Request) int64 {
	id, _ := middleware.OperatorFromContext(r.Context())
	return id
}

// PostMessage handles POST /api/messages
func (h *AssistantHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	reply, err := h.svc.HandleText(r.Context(), operator(r), req.Text)
	h.respond(w, r, "message", reply, err)
}

// PostVoice handles POST /api/voice. The body is the raw audio.
func (h *AssistantHandler) PostVoice(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxVoiceBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Voice message is too large")
		return
	}
	if len(audio) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Audio body is required")
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	reply, err := h.svc.HandleVoice(r.Context(), operator(r), audio, strings.TrimSpace(mimeType))
	h.respond(w, r, "voice", reply, err)
}

// Confirm handles POST /api/confirm
func (h *AssistantHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Confirm(r.Context(), operator(r))
	h.respond(w, r, "confirm", reply, err)
}

// Undo handles POST /api/undo
func (h *AssistantHandler) Undo(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Undo(r.Context(), operator(r))
	h.respond(w, r, "undo", reply, err)
}

// Reset handles POST /api/reset
func (h *AssistantHandler) Reset(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Reset(r.Context(), operator(r))
	h.respond(w, r, "reset", reply, err)
}

// Backup handles POST /api/backup
func (h *AssistantHandler) Backup(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Backup(r.Context(), operator(r))
	status := statusFor(err)
	if err == nil {
		status = http.StatusCreated
		if reply.Backup != nil && reply.Backup.JobID != "" {
			status = http.StatusAccepted
		}
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("backup failed")
	}
	middleware.WriteJSON(w, status, reply)
}

// Restore handles POST /api/restore
func (h *AssistantHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Location == "" {
		middleware.WriteError(w, http.StatusBadRequest, "location is required")
		return
	}
	reply, err := h.svc.Restore(r.Context(), operator(r), req.Location)
	h.respond(w, r, "restore", reply, err)
}

// Search handles GET /api/search?q=
func (h *AssistantHandler) Search(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Search(r.Context(), operator(r), r.URL.Query().Get("q"))
	h.respond(w, r, "search", reply, err)
}

// Find handles GET /api/find?q=
func (h *AssistantHandler) Find(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.Find(r.Context(), operator(r), r.URL.Query().Get("q"))
	h.respond(w, r, "find", reply, err)
}

// History handles GET /api/history
func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	reply, err := h.svc.History(r.Context(), operator(r))
	h.respond(w, r, "history", reply, err)
}

var reportCommands = map[string]domain.Command{
	string(domain.CommandAnalytics):  domain.CommandAnalytics,
	string(domain.CommandCategories): domain.CommandCategories,
	string(domain.CommandRecipients): domain.CommandRecipients,
	string(domain.CommandSuppliers):  domain.CommandSuppliers,
	string(domain.CommandSearch):     domain.CommandSearch,
	string(domain.CommandHistory):    domain.CommandHistory,
}

// Report handles GET /api/reports/{command}?text=
func (h *AssistantHandler) Report(w http.ResponseWriter, r *http.Request) {
	cmd, ok := reportCommands[chi.URLParam(r, "command")]
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Unknown report")
		return
	}
	reply, err := h.svc.Report(r.Context(), operator(r), cmd, r.URL.Query().Get("text"))
	h.respond(w, r, "report", reply, err)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
