package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ucundinamarca/cundibot/internal/config"
	"github.com/ucundinamarca/cundibot/internal/index"
	"github.com/ucundinamarca/cundibot/internal/logger"
	"github.com/ucundinamarca/cundibot/internal/pricing"
	"github.com/ucundinamarca/cundibot/internal/store"
)

// numRelevantChunks is how many chunks are retrieved as context per turn.
const numRelevantChunks = 4

// ErrNotReady means no knowledge index has been loaded yet. Chat is refused
// outright in that state; no partial answer is attempted.
var ErrNotReady = errors.New("knowledge index not loaded")

// LogStore is the slice of the relational store the chat service writes to.
type LogStore interface {
	AppendLog(entry *store.ConversationLog) error
}

// AnswerRequest is one chat turn. FullPrompt is what the model sees and may
// carry behavioral instructions beyond the question itself; RawQuestion is
// the clean user-facing question and is what gets logged. History is the
// caller's accumulated [question, answer] pairs; the service keeps no memory
// of prior turns.
type AnswerRequest struct {
	FullPrompt     string
	RawQuestion    string
	History        [][]string
	Mode           string
	ConversationID string
}

// ChatService answers questions against the loaded knowledge index. The
// index reference is swapped whole on reload; requests in flight finish
// against the index they started with.
type ChatService struct {
	cfg  *config.Config
	logs LogStore
	llm  LLM

	mu  sync.RWMutex
	idx *index.Index
}

func NewChatService(cfg *config.Config, logs LogStore, llm LLM) *ChatService {
	return &ChatService{cfg: cfg, logs: logs, llm: llm}
}

// ReloadIndex loads the on-disk index and swaps it in. On failure the
// previously loaded index, if any, keeps serving.
func (s *ChatService) ReloadIndex() error {
	ix, err := index.Load(s.cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to load knowledge index: %w", err)
	}

	s.mu.Lock()
	s.idx = ix
	s.mu.Unlock()

	logger.Log.Infof("Knowledge index loaded with %d chunks", ix.Len())
	return nil
}

func (s *ChatService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx != nil
}

func (s *ChatService) currentIndex() *index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx
}

// Answer runs one retrieval-augmented chat turn and logs it with token and
// cost accounting. The returned string is the model's completion verbatim.
func (s *ChatService) Answer(ctx context.Context, req AnswerRequest) (string, error) {
	ix := s.currentIndex()
	if ix == nil {
		return "", ErrNotReady
	}

	queryEmbedding, err := s.llm.GetEmbedding(ctx, req.FullPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to embed prompt: %w", err)
	}

	results := ix.Search(queryEmbedding, numRelevantChunks)
	message := renderMessage(results, req.FullPrompt)

	answer, usage, err := s.llm.GetChatCompletion(ctx, req.History, message)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM completion: %w", err)
	}

	promptCost, completionCost := pricing.EstimateCosts(s.cfg.ChatModel, usage.PromptTokens, usage.CompletionTokens)

	mode := req.Mode
	if mode == "" {
		mode = "normal"
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	entry := &store.ConversationLog{
		ConversationID:   conversationID,
		Mode:             mode,
		Question:         req.RawQuestion,
		Answer:           answer,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		PromptCost:       promptCost,
		CompletionCost:   completionCost,
		TotalCost:        promptCost + completionCost,
	}
	if err := s.logs.AppendLog(entry); err != nil {
		return "", fmt.Errorf("failed to log conversation turn: %w", err)
	}

	logger.Log.Debugf("Chat turn logged for conversation %s (%d tokens)", conversationID, usage.TotalTokens)
	return answer, nil
}

// renderMessage combines the retrieved context with the caller's prompt into
// the final user turn. The system persona is set on the model itself and the
// history travels as chat messages.
func renderMessage(results []index.ScoredChunk, fullPrompt string) string {
	var b strings.Builder
	if len(results) > 0 {
		b.WriteString("Context from the university documents:\n\n")
		for _, r := range results {
			b.WriteString(r.Chunk.Content)
			b.WriteString("\n\n")
		}
	} else {
		b.WriteString("No relevant university documents were found for this question.\n\n")
	}
	b.WriteString("Instructions and user question:\n")
	b.WriteString(fullPrompt)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
