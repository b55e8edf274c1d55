package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ucundinamarca/cundibot/internal/config"
	"github.com/ucundinamarca/cundibot/internal/logger"
)

const chatSystemInstruction = "You are CundiBot, an AI assistant for the University of Cundinamarca. " +
	"Your behavior is guided by the detailed instructions included with each user question. " +
	"Use the conversation history and the context from the retrieved documents to give the best " +
	"possible answer on every turn."

// Usage reports token consumption for one completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLM is the slice of the language-model provider the chat and ingestion
// paths depend on.
type LLM interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	GetChatCompletion(ctx context.Context, history [][]string, message string) (string, Usage, error)
}

// LLMService wraps the Gemini client for embeddings and chat completions. The
// client is dialed on first use, not at construction, so the server can boot
// without a credential; until one is configured every call fails with an
// error the handlers surface.
type LLMService struct {
	cfg *config.Config

	mu     sync.Mutex
	client *genai.Client
}

func NewLLMService(cfg *config.Config) *LLMService {
	return &LLMService{cfg: cfg}
}

// conn returns the shared genai client, creating it on first use.
func (s *LLMService) conn(ctx context.Context) (*genai.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if s.cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(s.cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *LLMService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Log.Errorf("Error closing GenAI client: %v", err)
		}
		s.client = nil
	}
}

func (s *LLMService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(s.cfg.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// GetChatCompletion sends message against the accumulated history, which the
// caller supplies as ordered [question, answer] pairs. Token usage comes from
// the provider's metadata when present, otherwise from a local estimate.
func (s *LLMService) GetChatCompletion(ctx context.Context, history [][]string, message string) (string, Usage, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return "", Usage{}, err
	}

	model := client.GenerativeModel(s.cfg.ChatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	var geminiHistory []*genai.Content
	for _, pair := range history {
		if len(pair) != 2 {
			continue
		}
		geminiHistory = append(geminiHistory,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(pair[0])}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(pair[1])}},
		)
	}

	chatSession := model.StartChat()
	chatSession.History = geminiHistory

	resp, err := chatSession.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", Usage{}, fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", Usage{}, fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			logger.Log.Warnf("Gemini response part was not text: %T", part)
		}
	}
	if responseText.Len() == 0 {
		return "", Usage{}, fmt.Errorf("gemini response contained no text parts")
	}
	answer := responseText.String()

	usage := s.usageFrom(resp, history, message, answer)
	return answer, usage, nil
}

// usageFrom extracts token usage from the response metadata, falling back to
// a tiktoken estimate when the provider omits it.
func (s *LLMService) usageFrom(resp *genai.GenerateContentResponse, history [][]string, message, answer string) Usage {
	if resp.UsageMetadata != nil {
		prompt := int(resp.UsageMetadata.PromptTokenCount)
		completion := int(resp.UsageMetadata.CandidatesTokenCount)
		return Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
	}

	logger.Log.Debug("No usage metadata in response, estimating token counts locally")
	return EstimateUsage(history, message, answer)
}
