package core

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Local token counting, used only when the provider response carries no usage
// metadata. Gemini does not publish a tokenizer, so cl100k_base is used as a
// close approximation; the resulting counts feed cost estimates, not billing.

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoder() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

func countTokens(text string) int {
	e, err := encoder()
	if err != nil {
		return 0
	}
	return len(e.Encode(text, nil, nil))
}

// EstimateUsage approximates the token usage of one completion call. Each
// history turn and the final message incur a 4-token framing overhead, plus 3
// tokens for reply priming.
func EstimateUsage(history [][]string, message, answer string) Usage {
	prompt := 0
	for _, pair := range history {
		for _, text := range pair {
			prompt += 4 + countTokens(text)
		}
	}
	prompt += 4 + countTokens(message)
	prompt += 3

	completion := countTokens(answer)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
