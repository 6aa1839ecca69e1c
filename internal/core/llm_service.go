package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"whatif-novel-api/internal/config"
)

const (
	groqBaseURL      = "https://api.groq.com/openai/v1"
	defaultModelName = "llama-3.3-70b-versatile"

	// One synchronous request per generation, no retry or streaming. The
	// timeout bounds how long a single request may block its handler.
	generationTimeout = 120 * time.Second
)

// ErrGenerationFailed covers every failure of the external model call:
// missing credentials, timeouts, auth errors, empty responses.
var ErrGenerationFailed = errors.New("story generation failed")

// TextGenerator is the single entry point to the external model. StoryService
// depends on this instead of the concrete client so tests can substitute a
// canned generator.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error)
}

type LLMService struct {
	client *openai.Client
	model  string
}

// NewLLMService builds the Groq-backed client. With no API key configured the
// service still constructs, so read-only endpoints keep working; every
// generation call then fails with ErrGenerationFailed.
func NewLLMService() *LLMService {
	s := &LLMService{model: defaultModelName}

	if config.AppConfig.GroqAPIKey == "" {
		return s
	}

	clientConfig := openai.DefaultConfig(config.AppConfig.GroqAPIKey)
	clientConfig.BaseURL = groqBaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: generationTimeout}

	s.client = openai.NewClientWithConfig(clientConfig)
	return s
}

func (s *LLMService) ChatCompletion(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: GROQ_API_KEY is not configured", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
	)
	if err != nil {
		log.Printf("Groq chat completion failed after %v: %v", time.Since(start), err)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Printf("Groq returned an empty response after %v", time.Since(start))
		return "", fmt.Errorf("%w: received an empty response", ErrGenerationFailed)
	}

	log.Printf("Groq chat completion took %v (%d completion tokens)", time.Since(start), resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}
