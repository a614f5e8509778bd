package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

// Classification is what the classifier assigns to a complaint.
type Classification struct {
	Category    string
	Sentiment   string
	Priority    string
	Response    string
	Explanation string
	Confidence  int // 0-100
	Provider    string
	Model       string
}

// Classifier assigns category, sentiment and priority to complaint text and
// drafts a reply. Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// ClassifierError reports that the classifier could not produce a usable
// classification.
type ClassifierError struct {
	Reason string
	Err    error
}

func (e *ClassifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier: %s: %v", e.Reason, e.Err)
	}
	return "classifier: " + e.Reason
}

func (e *ClassifierError) Unwrap() error { return e.Err }

const classificationPrompt = `You are a customer support triage assistant. Read the customer complaint below and classify it.

Respond with a single JSON object and nothing else, using exactly these keys:
{
  "category": "short category label, e.g. Billing, Delivery, Product Quality, Customer Service, Technical Issue, Refund, Other",
  "sentiment": "Positive | Neutral | Negative",
  "priority": "Low | Medium | High",
  "response": "a polite, empathetic reply to the customer (2-4 sentences)",
  "explanation": "one or two sentences explaining the category and priority",
  "confidence": integer from 0 to 100
}

Use High priority for safety issues, financial loss, legal threats or repeated failures.

Complaint:
"""
%s
"""`

// llmCaller sends a prompt to one configured backend and returns raw text.
type llmCaller func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error)

// AIClassifier classifies complaints with a large language model. Exactly one
// backend is used per call: the default active configuration, else any active
// one, else the OpenAI settings from the config file.
type AIClassifier struct {
	db       *gorm.DB
	fallback *config.OpenAIConfig
	opts     config.ClassifierConfig
	call     llmCaller
}

func NewAIClassifier(db *gorm.DB, fallback *config.OpenAIConfig, opts *config.ClassifierConfig) *AIClassifier {
	c := &AIClassifier{db: db, fallback: fallback}
	if opts != nil {
		c.opts = *opts
	}
	if c.opts.TimeoutSeconds <= 0 {
		c.opts.TimeoutSeconds = 60
	}
	c.call = c.callLLM
	return c
}

func (c *AIClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	llmConfig, err := c.selectLLMConfig()
	if err != nil {
		return nil, &ClassifierError{Reason: "no LLM configuration available", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.opts.TimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	raw, err := c.call(ctx, llmConfig, fmt.Sprintf(classificationPrompt, text))
	ObserveClassifier(llmConfig.Provider, time.Since(start), err)
	if err != nil {
		return nil, &ClassifierError{Reason: "LLM call failed", Err: err}
	}

	result, err := ParseClassification(raw)
	if err != nil {
		return nil, err
	}
	result.Provider = llmConfig.Provider
	result.Model = llmConfig.Model

	logger.Info().
		Str("provider", result.Provider).
		Str("model", result.Model).
		Str("category", result.Category).
		Str("priority", result.Priority).
		Int("confidence", result.Confidence).
		Dur("took", time.Since(start)).
		Msg("[Classifier] complaint classified")
	return result, nil
}

func (c *AIClassifier) selectLLMConfig() (*models.LLMConfig, error) {
	if c.db != nil {
		var cfg models.LLMConfig
		err := c.db.Where("is_default = ? AND is_active = ?", true, true).First(&cfg).Error
		if err == nil {
			return &cfg, nil
		}
		err = c.db.Where("is_active = ?", true).Order("id ASC").First(&cfg).Error
		if err == nil {
			return &cfg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if c.fallback == nil || c.fallback.APIKey == "" {
		return nil, errors.New("no active LLM config and no OpenAI API key configured")
	}
	return &models.LLMConfig{
		Name:        "fallback",
		Provider:    models.ProviderOpenAI,
		BaseURL:     c.fallback.BaseURL,
		APIKey:      c.fallback.APIKey,
		Model:       c.fallback.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}, nil
}

// callLLM dispatches on the configured provider.
func (c *AIClassifier) callLLM(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	logger.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("[Classifier] calling LLM")

	switch llmConfig.Provider {
	case models.ProviderAnthropic:
		return c.callAnthropic(ctx, llmConfig, prompt)
	case models.ProviderOllama:
		return c.callOllama(ctx, llmConfig, prompt)
	case models.ProviderGemini:
		return c.callGemini(ctx, llmConfig, prompt)
	case models.ProviderAzure:
		return c.callOpenAICompatible(ctx, openai.DefaultAzureConfig(llmConfig.APIKey, llmConfig.BaseURL), llmConfig, prompt)
	default:
		clientConfig := openai.DefaultConfig(llmConfig.APIKey)
		if llmConfig.BaseURL != "" {
			clientConfig.BaseURL = llmConfig.BaseURL
		}
		return c.callOpenAICompatible(ctx, clientConfig, llmConfig, prompt)
	}
}

func (c *AIClassifier) temperature(llmConfig *models.LLMConfig) float64 {
	if llmConfig.Temperature > 0 {
		return llmConfig.Temperature
	}
	if c.opts.Temperature > 0 {
		return c.opts.Temperature
	}
	return 0.2
}

func (c *AIClassifier) maxTokens(llmConfig *models.LLMConfig) int {
	if llmConfig.MaxTokens > 0 {
		return llmConfig.MaxTokens
	}
	if c.opts.MaxTokens > 0 {
		return c.opts.MaxTokens
	}
	return 1024
}

// callOpenAICompatible covers OpenAI, Azure OpenAI (Model is the deployment
// name) and any OpenAI-compatible endpoint.
func (c *AIClassifier) callOpenAICompatible(ctx context.Context, clientConfig openai.ClientConfig, llmConfig *models.LLMConfig, prompt string) (string, error) {
	client := openai.NewClientWithConfig(clientConfig)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(c.temperature(llmConfig)),
		MaxTokens:   c.maxTokens(llmConfig),
	})
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", llmConfig.Provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", llmConfig.Provider)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *AIClassifier) callAnthropic(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(llmConfig.APIKey)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := llmConfig.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(c.maxTokens(llmConfig)),
		Temperature: anthropic.Float(c.temperature(llmConfig)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}

func (c *AIClassifier) callOllama(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	baseURL := llmConfig.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := llmConfig.Model
	if model == "" {
		model = "llama3"
	}

	stream := false
	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Format:   json.RawMessage(`"json"`),
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature(llmConfig),
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}
	return content.String(), nil
}

func (c *AIClassifier) callGemini(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  llmConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini client error: %w", err)
	}

	model := llmConfig.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	temp := float32(c.temperature(llmConfig))
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &temp,
		MaxOutputTokens:  int32(c.maxTokens(llmConfig)),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return resp.Text(), nil
}

type rawClassification struct {
	Category    string          `json:"category"`
	Sentiment   string          `json:"sentiment"`
	Priority    string          `json:"priority"`
	Response    string          `json:"response"`
	Explanation string          `json:"explanation"`
	Confidence  json.RawMessage `json:"confidence"`
}

// ParseClassification decodes the model's JSON reply. Markdown fences and
// surrounding prose are tolerated; enum values are normalized to their
// canonical casing and confidence is clamped to 0-100.
func ParseClassification(text string) (*Classification, error) {
	body := extractJSONObject(text)
	if body == "" {
		return nil, &ClassifierError{Reason: "response contained no JSON object"}
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, &ClassifierError{Reason: "invalid JSON in response", Err: err}
	}

	confidence, ok := parseConfidence(raw.Confidence)
	if !ok {
		return nil, &ClassifierError{Reason: fmt.Sprintf("missing or invalid confidence %q", string(raw.Confidence))}
	}
	result := &Classification{
		Category:    strings.TrimSpace(raw.Category),
		Response:    strings.TrimSpace(raw.Response),
		Explanation: strings.TrimSpace(raw.Explanation),
		Confidence:  confidence,
	}

	if result.Sentiment, ok = normalizeEnum(raw.Sentiment, models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative); !ok {
		return nil, &ClassifierError{Reason: fmt.Sprintf("unknown sentiment %q", raw.Sentiment)}
	}
	if result.Priority, ok = normalizeEnum(raw.Priority, models.PriorityLow, models.PriorityMedium, models.PriorityHigh); !ok {
		return nil, &ClassifierError{Reason: fmt.Sprintf("unknown priority %q", raw.Priority)}
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// Validate reports the first classifier-derived text field that is empty.
func (c *Classification) Validate() error {
	fields := []struct{ name, value string }{
		{"category", c.Category},
		{"sentiment", c.Sentiment},
		{"priority", c.Priority},
		{"response", c.Response},
		{"explanation", c.Explanation},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ClassifierError{Reason: "empty " + f.name}
		}
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return &ClassifierError{Reason: fmt.Sprintf("confidence %d out of range", c.Confidence)}
	}
	return nil
}

func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func normalizeEnum(value string, allowed ...string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a, true
		}
	}
	return "", false
}

// parseConfidence accepts 87, 0.87, 1.0, "87" or "87%". A value below 1,
// or a decimal literal equal to 1, is a probability; the integer 1 means 1%.
// Absent, null and non-numeric values are rejected.
func parseConfidence(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	literal := strings.TrimSpace(string(raw))
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		literal = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err = strconv.ParseFloat(literal, 64); err != nil {
			return 0, false
		}
	}

	if f > 0 && (f < 1 || (f == 1 && strings.ContainsAny(literal, ".eE"))) {
		f *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, f)))), true
}
