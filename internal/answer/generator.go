// Package answer turns a query and retrieved context into the final
// response, with a deterministic templated fallback when the completion
// service is unreachable or not configured.
package answer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/metrics"
)

// DefaultBaseURL points at the hosted OpenAI-compatible completion API.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

const (
	defaultModel     = "llama3-70b-8192"
	defaultMaxTokens = 1000
	// Low temperature on purpose: answers are grounded in tabular data,
	// so determinism and factuality win over creativity.
	defaultTemperature = 0.3
)

const systemInstruction = "You are a helpful assistant that answers questions " +
	"based on CSV data. Provide clear, accurate responses using the provided context."

// Generator produces answers via a completion API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// Config holds answer generator settings. An empty APIKey disables the
// completion path entirely; every answer then takes the fallback template.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *zap.Logger
}

// NewGenerator creates an answer generator.
func NewGenerator(cfg Config) *Generator {
	g := &Generator{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
	if g.model == "" {
		g.model = defaultModel
	}
	if g.temperature == 0 {
		g.temperature = defaultTemperature
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}

	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		} else {
			clientCfg.BaseURL = DefaultBaseURL
		}
		g.client = openai.NewClientWithConfig(clientCfg)
	}
	return g
}

// Answer produces the response text for a query given assembled context.
// It never fails and never returns an empty string: any completion error
// degrades to the templated fallback, flagged in the second return value.
func (g *Generator) Answer(ctx context.Context, query string, contextTexts []string) (string, bool) {
	if g.client == nil {
		g.logger.Warn("completion service not configured, using fallback answer")
		metrics.ChatAnswersTotal.WithLabelValues("fallback").Inc()
		return Fallback(query, contextTexts), true
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(query, contextTexts)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		g.logger.Warn("completion service unavailable, using fallback answer", zap.Error(err))
		metrics.ChatAnswersTotal.WithLabelValues("fallback").Inc()
		return Fallback(query, contextTexts), true
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.ChatAnswersTotal.WithLabelValues("fallback").Inc()
		return Fallback(query, contextTexts), true
	}

	metrics.ChatAnswersTotal.WithLabelValues("model").Inc()
	return resp.Choices[0].Message.Content, false
}

func buildPrompt(query string, contextTexts []string) string {
	return fmt.Sprintf(`Based on the following CSV data context, please answer the user's question. Be helpful and specific, referencing the data when relevant.

Context from CSV:
%s

User Question: %s

Answer:`, strings.Join(contextTexts, "\n\n"), query)
}

// Fallback is the deterministic degraded-mode answer: it echoes the query
// verbatim, states whether relevant context was found, and tells the user
// the AI service is degraded. Always non-empty, never panics.
func Fallback(query string, contextTexts []string) string {
	if len(contextTexts) > 0 {
		return fmt.Sprintf("I understand you're asking: %q\n\n"+
			"Based on the available CSV data context, I can see there is relevant "+
			"information, but I'm currently unable to process it because the AI "+
			"completion service is unreachable.\n\n"+
			"Your CSV data has been processed and is ready for analysis once the "+
			"service is restored.", query)
	}
	return fmt.Sprintf("I understand you're asking: %q\n\n"+
		"I'm currently unable to access external AI services to provide a detailed "+
		"response. This could be due to:\n\n"+
		"1. Missing or invalid API keys\n"+
		"2. Network connectivity issues\n"+
		"3. Temporary service outages\n\n"+
		"Please check the service configuration and try again. If you've uploaded "+
		"CSV data, upload it again once the services are restored.", query)
}
