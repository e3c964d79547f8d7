package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"email-assistant/pkg/ai"
	"email-assistant/pkg/signals"

	"go.uber.org/zap"
)

const (
	noContextPlaceholder = "No specific knowledge base context available."
	fallbackConfidence   = 0.5
	fallbackRationale    = "Fallback response due to AI service error"
	maxConfidence        = 0.9
)

// Retriever returns the answers of the knowledge entries closest to query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// GenerationSettings are the generation knobs that can change at runtime.
type GenerationSettings struct {
	TopK        int     `json:"top_k"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// DefaultGenerationSettings match the values the prompts were tuned with.
var DefaultGenerationSettings = GenerationSettings{TopK: 3, MaxTokens: 500, Temperature: 0.7}

// ResponseInput is everything the generator needs to draft one reply.
type ResponseInput struct {
	Body      string
	Subject   string
	Sender    string
	Sentiment signals.Sentiment
	Priority  signals.Priority
	Category  signals.Category
	// Override is appended to the prompt as additional instructions.
	Override string
}

// Draft is a generated (or fallback) reply.
type Draft struct {
	Response     string  `json:"response"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale"`
	ContextItems int     `json:"context_items"`
	Fallback     bool    `json:"fallback"`
}

// ResponseGenerator drafts replies with retrieval-augmented prompting.
type ResponseGenerator struct {
	retriever Retriever
	generator ai.Generator
	settings  func() GenerationSettings
	timeout   time.Duration
	logger    *zap.Logger
}

// NewResponseGenerator builds a generator. retriever may be nil, in which case
// prompts carry no knowledge base context. settings is read on every call.
func NewResponseGenerator(retriever Retriever, generator ai.Generator, settings func() GenerationSettings, timeout time.Duration, logger *zap.Logger) *ResponseGenerator {
	if settings == nil {
		settings = func() GenerationSettings { return DefaultGenerationSettings }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseGenerator{
		retriever: retriever,
		generator: generator,
		settings:  settings,
		timeout:   timeout,
		logger:    logger,
	}
}

// Generate never fails; any model error yields the fallback draft.
func (g *ResponseGenerator) Generate(ctx context.Context, in ResponseInput) Draft {
	settings := g.settings()
	contextItems := g.retrieve(ctx, in.Body, settings.TopK)

	contextText := noContextPlaceholder
	if len(contextItems) > 0 {
		contextText = strings.Join(contextItems, "\n")
	}

	req := ai.GenerateRequest{
		System:      systemPrompt(contextText, in),
		Prompt:      userPrompt(in),
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
	}

	text, err := g.call(ctx, req)
	if err != nil {
		return g.fallback(in, err)
	}

	return Draft{
		Response:     text,
		Confidence:   confidenceFor(text),
		Rationale:    fmt.Sprintf("Generated response for %s email with %s sentiment and %s priority. Used %d relevant knowledge base items.", in.Category, in.Sentiment, in.Priority, len(contextItems)),
		ContextItems: len(contextItems),
	}
}

func (g *ResponseGenerator) retrieve(ctx context.Context, query string, k int) []string {
	if g.retriever == nil || k <= 0 {
		return nil
	}
	items, err := g.retriever.Search(ctx, query, k)
	if err != nil {
		g.logger.Warn("knowledge retrieval failed, generating without context", zap.Error(err))
		return nil
	}
	return items
}

func (g *ResponseGenerator) call(ctx context.Context, req ai.GenerateRequest) (string, error) {
	if g.generator == nil {
		return "", ai.ErrNoProvider
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

func (g *ResponseGenerator) fallback(in ResponseInput, err error) Draft {
	fields := []zap.Field{zap.String("category", string(in.Category)), zap.Error(err)}
	switch kind := ai.KindOf(err); kind {
	case ai.KindTimeout, ai.KindCanceled:
		g.logger.Warn("generation timed out, using fallback response", fields...)
	case ai.KindQuota, ai.KindUnavailable, ai.KindConnection:
		g.logger.Warn("model provider unavailable, using fallback response", append(fields, zap.Stringer("kind", kind))...)
	case ai.KindMalformed, ai.KindRejected:
		g.logger.Error("model returned an unusable response, using fallback response", append(fields, zap.Stringer("kind", kind))...)
	default:
		g.logger.Error("generation failed, using fallback response", fields...)
	}

	return Draft{
		Response:   fmt.Sprintf("Thank you for your %s request. I understand this is %s priority. I'm currently processing your inquiry and will get back to you shortly with a detailed response.", in.Category, in.Priority),
		Confidence: fallbackConfidence,
		Rationale:  fallbackRationale,
		Fallback:   true,
	}
}

// confidenceFor scales with length: 100 characters or more is as confident as
// a generated reply gets.
func confidenceFor(text string) float64 {
	return min(maxConfidence, float64(utf8.RuneCountInString(text))/100)
}

func systemPrompt(contextText string, in ResponseInput) string {
	return `You are a professional customer support AI assistant. Your role is to:
1. Generate empathetic, helpful, and professional responses
2. Use the provided knowledge base context when relevant
3. Acknowledge the customer's sentiment and priority level
4. Provide clear, actionable solutions
5. Maintain a friendly and professional tone

Knowledge Base Context:
` + contextText + `

Email Category: ` + string(in.Category) + `
Priority Level: ` + string(in.Priority) + `
Sentiment: ` + string(in.Sentiment) + `

Guidelines:
- If sentiment is negative, acknowledge their frustration empathetically
- If priority is urgent, emphasize quick resolution
- Use the knowledge base context when it's relevant to their query
- Be specific and actionable in your response
- Keep the tone professional yet warm
- If you don't have enough information, ask clarifying questions`
}

func userPrompt(in ResponseInput) string {
	var b strings.Builder
	b.WriteString("Generate a response to this email:\n\n")
	b.WriteString("From: " + in.Sender + "\n")
	b.WriteString("Subject: " + in.Subject + "\n")
	b.WriteString("Content: " + in.Body + "\n\n")
	if override := strings.TrimSpace(in.Override); override != "" {
		b.WriteString("Additional Instructions: " + override + "\n")
	}
	b.WriteString("\nPlease provide a professional, empathetic response that addresses their needs.")
	return b.String()
}
