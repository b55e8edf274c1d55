package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ucundinamarca/cundibot/internal/auth"
	"github.com/ucundinamarca/cundibot/internal/config"
	"github.com/ucundinamarca/cundibot/internal/core"
	"github.com/ucundinamarca/cundibot/internal/ingest"
	"github.com/ucundinamarca/cundibot/internal/logger"
	"github.com/ucundinamarca/cundibot/internal/store"
)

// adminKeyHeader carries the plaintext candidate admin key on every admin
// request. The name matches what the admin frontend sends.
const adminKeyHeader = "X-Admin-API-Key"

const maxUploadBytes = 64 << 20

type APIHandler struct {
	cfg      *config.Config
	chat     *core.ChatService
	logs     *store.SQLiteStore
	admin    *auth.AdminKeyStore
	pipeline *ingest.Pipeline
}

func NewAPIHandler(cfg *config.Config, chat *core.ChatService, logs *store.SQLiteStore, admin *auth.AdminKeyStore, pipeline *ingest.Pipeline) *APIHandler {
	return &APIHandler{cfg: cfg, chat: chat, logs: logs, admin: admin, pipeline: pipeline}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// AdminAuthMiddleware gates the admin surface. A missing or mismatched key
// gets the same 401, whether or not an admin key has ever been configured.
func (h *APIHandler) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := r.Header.Get(adminKeyHeader)
		if candidate == "" {
			http.Error(w, "API key not provided", http.StatusUnauthorized)
			return
		}

		ok, err := h.admin.Verify(candidate)
		if err != nil {
			logger.Log.Errorf("Error verifying admin key: %v", err)
			http.Error(w, "Failed to verify API key", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ChatRequest struct {
	FullPrompt     string     `json:"full_prompt"`
	RawQuestion    string     `json:"raw_question"`
	ChatHistory    [][]string `json:"chat_history"`
	Mode           string     `json:"mode"`
	ConversationID string     `json:"conversation_id"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.FullPrompt == "" {
		http.Error(w, "full_prompt is required", http.StatusBadRequest)
		return
	}
	if req.RawQuestion == "" {
		req.RawQuestion = req.FullPrompt
	}

	answer, err := h.chat.Answer(r.Context(), core.AnswerRequest{
		FullPrompt:     req.FullPrompt,
		RawQuestion:    req.RawQuestion,
		History:        req.ChatHistory,
		Mode:           req.Mode,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		if errors.Is(err, core.ErrNotReady) {
			http.Error(w, "Knowledge base not initialized", http.StatusServiceUnavailable)
			return
		}
		logger.Log.Errorf("Chat turn failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, ChatResponse{Answer: answer})
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *APIHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.admin.Rotate(req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrKeyTooShort) {
			http.Error(w, fmt.Sprintf("The new password must be at least %d characters", auth.MinKeyLength), http.StatusBadRequest)
			return
		}
		logger.Log.Errorf("Error rotating admin key: %v", err)
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// UploadAndRegenerateHandler replaces the whole knowledge folder with the
// uploaded files, rebuilds the index, and reloads the chat service before
// returning. If the rebuild fails the chat service keeps serving whatever
// index it already had.
func (h *APIHandler) UploadAndRegenerateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	if err := os.RemoveAll(h.cfg.KnowledgeDir); err != nil {
		logger.Log.Errorf("Error clearing knowledge folder: %v", err)
		http.Error(w, "Failed to clear knowledge folder", http.StatusInternalServerError)
		return
	}
	if err := os.MkdirAll(h.cfg.KnowledgeDir, 0o755); err != nil {
		logger.Log.Errorf("Error recreating knowledge folder: %v", err)
		http.Error(w, "Failed to recreate knowledge folder", http.StatusInternalServerError)
		return
	}

	for _, fh := range files {
		if err := h.saveUpload(fh); err != nil {
			logger.Log.Errorf("Error saving uploaded file %s: %v", fh.Filename, err)
			http.Error(w, "Failed to save uploaded file: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	summary, err := h.pipeline.Rebuild(r.Context())
	if err != nil {
		logger.Log.Errorf("Index rebuild failed: %v", err)
		http.Error(w, "Index rebuild failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.chat.ReloadIndex(); err != nil {
		// No index on disk yet (e.g. the upload contained no usable PDFs).
		// The previously loaded index keeps serving.
		logger.Log.Warnf("Index not reloaded after rebuild: %v", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Knowledge base regenerated",
		"details": summary,
	})
}

func (h *APIHandler) saveUpload(fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(h.cfg.KnowledgeDir, filepath.Base(fh.Filename)))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// statsDateLayouts accepts ISO timestamps with or without a time component.
var statsDateLayouts = []string{"2006-01-02T15:04:05", "2006-01-02"}

func parseStatsDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range statsDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	var filter store.LogFilter
	if value := r.URL.Query().Get("start_date"); value != "" {
		t, err := parseStatsDate(value)
		if err != nil {
			http.Error(w, "Invalid start_date: "+value, http.StatusBadRequest)
			return
		}
		filter.Start = &t
	}
	if value := r.URL.Query().Get("end_date"); value != "" {
		t, err := parseStatsDate(value)
		if err != nil {
			http.Error(w, "Invalid end_date: "+value, http.StatusBadRequest)
			return
		}
		filter.End = &t
	}

	stats, err := h.logs.Aggregate(filter)
	if err != nil {
		logger.Log.Errorf("Error aggregating stats: %v", err)
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total_conversations": stats.TotalConversations,
		"total_tokens":        stats.TotalTokens,
		"total_cost":          fmt.Sprintf("%.6f", stats.TotalCost),
		"normal_mode_count":   stats.CountByMode["normal"],
		"tutor_mode_count":    stats.CountByMode["tutor"],
	})
}

func (h *APIHandler) ConversationsHandler(w http.ResponseWriter, r *http.Request) {
	logs, err := h.logs.ListRecent(100)
	if err != nil {
		logger.Log.Errorf("Error listing conversations: %v", err)
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []store.ConversationLog{}
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *APIHandler) ClearLogsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.logs.ClearLogs(); err != nil {
		logger.Log.Errorf("Error clearing logs: %v", err)
		http.Error(w, "Failed to clear logs", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Conversation logs cleared"})
}

func (h *APIHandler) ConversationsCSVHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=cundibot_conversations.csv`)
	if err := h.logs.WriteCSV(w); err != nil {
		// Headers are already out; all we can do is log.
		logger.Log.Errorf("Error streaming CSV export: %v", err)
	}
}
