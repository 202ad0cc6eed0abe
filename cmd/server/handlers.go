package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/experience"
	"github.com/p-n-ai/buzzle/internal/generator"
	"github.com/p-n-ai/buzzle/internal/progress"
	"github.com/p-n-ai/buzzle/internal/session"
)

const (
	readyTimeout  = 2 * time.Second
	maxBodyBytes  = 1 << 20
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// checker reports whether a backing service is reachable.
type checker func(ctx context.Context) error

// deps holds what the HTTP routes serve. Nil members leave their routes out.
type deps struct {
	generator session.Generator
	progress  *progress.Service
	catalog   *catalog.Catalog
	play      http.Handler
	metrics   http.Handler
	checks    map[string]checker
}

// newMux creates the HTTP router.
func newMux(d deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(d.checks))

	if d.generator != nil {
		mux.HandleFunc("POST /generate", handleGenerate(d.generator))
		mux.HandleFunc("OPTIONS /generate", handlePreflight)
	}
	if d.progress != nil {
		mux.HandleFunc("POST /progress", handleSaveProgress(d.progress))
		mux.HandleFunc("GET /progress/{userId}", handleListProgress(d.progress))
		mux.HandleFunc("GET /progress/{userId}/export.xlsx", handleExportProgress(d.progress))
	}
	if d.catalog != nil {
		mux.HandleFunc("GET /catalog", handleCatalog(d.catalog))
	}
	if d.play != nil {
		mux.Handle("GET /play", d.play)
	}
	if d.metrics != nil {
		mux.Handle("GET /metrics", d.metrics)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, experience.ErrorResponse{Error: msg})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks map[string]checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", name, "error", err)
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Allow-Methods", "OPTIONS,POST")
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	writeJSON(w, http.StatusOK, map[string]string{"message": "CORS OK"})
}

// generateBody is the union of the generation and feedback requests; the
// type field tells them apart.
type generateBody struct {
	Type         string              `json:"type"`
	Character    string              `json:"character"`
	Subject      string              `json:"subject"`
	Mode         string              `json:"mode"`
	Level        int                 `json:"level"`
	IsCorrect    bool                `json:"is_correct"`
	QuestionData experience.Question `json:"question_data"`
}

func handleGenerate(gen session.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w.Header())

		var body generateBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if body.Type == experience.FeedbackType {
			resp, err := gen.Feedback(r.Context(), experience.FeedbackRequest{
				Type:         body.Type,
				Character:    body.Character,
				IsCorrect:    body.IsCorrect,
				QuestionData: body.QuestionData,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		req := experience.GenerateRequest{
			Character: body.Character,
			Subject:   body.Subject,
			Mode:      experience.Mode(strings.ToLower(strings.TrimSpace(body.Mode))),
			Level:     body.Level,
		}
		exp, err := gen.Generate(r.Context(), req)
		switch {
		case errors.Is(err, generator.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, generator.ErrUnknownMode):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			slog.Error("generation failed", "character", req.Character, "subject", req.Subject, "mode", req.Mode, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, exp)
		}
	}
}

func handleSaveProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req progress.Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, progress.MsgMissingFields)
			return
		}
		err := svc.Report(r.Context(), req)
		switch {
		case errors.Is(err, progress.ErrMissingFields):
			writeError(w, http.StatusBadRequest, progress.MsgMissingFields)
		case err != nil:
			writeError(w, http.StatusInternalServerError, progress.MsgInternal)
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": progress.MsgSaved})
		}
	}
}

func handleListProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("userId")
		records, err := svc.History(r.Context(), userID)
		if err != nil {
			slog.Error("failed to list progress", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, progress.MsgInternal)
			return
		}
		if records == nil {
			records = []progress.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleExportProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("userId")
		records, err := svc.History(r.Context(), userID)
		if err != nil {
			slog.Error("failed to list progress", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, progress.MsgInternal)
			return
		}

		// Buffer so a failed export can still return a JSON error.
		var buf bytes.Buffer
		if err := progress.WriteXLSX(&buf, userID, records); err != nil {
			slog.Error("failed to export progress", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, progress.MsgInternal)
			return
		}
		w.Header().Set("Content-Type", xlsxMediaType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "progress-" + userID + ".xlsx"}))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

type catalogView struct {
	Characters []catalog.Character `json:"characters"`
	Subjects   []catalog.Subject   `json:"subjects"`
}

func handleCatalog(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalogView{Characters: c.Characters(), Subjects: c.Subjects()})
	}
}
