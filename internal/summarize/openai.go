package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hyperjump/ronbun/internal/models"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

const systemPrompt = "あなたは学術論文の専門家です。英語の学術論文のタイトルと要約を日本語に翻訳してください。簡潔かつ正確に翻訳してください。"

// OpenAIOptions configures an OpenAI chat-completions summarizer.
type OpenAIOptions struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	RetryAttempts uint
	RetryDelay    time.Duration
	Timeout       time.Duration
	Logger        *zap.Logger
}

// OpenAI summarizes papers with the chat completions API.
type OpenAI struct {
	httpClient       *resty.Client
	model            string
	maxTokens        int
	temperature      float32
	topP             float32
	maxRetryAttempts uint
	retryDelay       time.Duration
	logger           *zap.Logger
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAI returns an OpenAI summarizer. An empty API key is rejected.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = "gpt-3.5-turbo"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Authorization", "Bearer "+opts.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &OpenAI{
		httpClient:       client,
		model:            opts.Model,
		maxTokens:        opts.MaxTokens,
		temperature:      opts.Temperature,
		topP:             opts.TopP,
		maxRetryAttempts: opts.RetryAttempts,
		retryDelay:       opts.RetryDelay,
		logger:           opts.Logger.Named("openai"),
	}, nil
}

// Close releases the underlying HTTP client.
func (c *OpenAI) Close() error {
	return c.httpClient.Close()
}

// Summarize implements Summarizer. A response without a summary line still succeeds,
// carrying ExtractionFailedSummary.
func (c *OpenAI) Summarize(ctx context.Context, paper *models.Paper) (models.Summary, error) {
	var content string
	if err := retry.Do(
		func() error {
			text, err := c.complete(ctx, paper)
			if err != nil {
				if !isRetryableError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			content = text
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetryAttempts+1),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
	); err != nil {
		return models.Summary{}, fmt.Errorf("%w: summarize %s: %v", models.ErrUpstreamUnavailable, paper.ID, err)
	}

	titleJA, summaryJA, ok := ParseResponse(content, paper.Title)
	if !ok {
		c.logger.Warn("failed to extract summary from response", zap.String("paper_id", paper.ID))
	}
	return models.Summary{
		PaperID:   paper.ID,
		TitleJA:   titleJA,
		SummaryJA: summaryJA,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *OpenAI) complete(ctx context.Context, paper *models.Paper) (string, error) {
	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(paper)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		TopP:        c.topP,
	}
	response, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&chatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return "", fmt.Errorf("response error %d: %s", response.StatusCode(), response.String())
	}

	result, _ := response.Result().(*chatCompletionResponse)
	if result == nil || len(result.Choices) == 0 {
		return "", fmt.Errorf("empty response body or choices: %s", response.String())
	}
	content := result.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response content: %s", response.String())
	}
	c.logger.Debug("openai response content", zap.String("paper_id", paper.ID), zap.Int("length", len(content)))
	return content, nil
}

func userPrompt(paper *models.Paper) string {
	return fmt.Sprintf("タイトル：%s\nアブストラクト：%s\n\n以下の形式で必ず回答してください：\nタイトル：[論文タイトルの日本語訳]\n要約：[アブストラクトの日本語要約]",
		paper.Title, paper.Summary)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "i/o timeout") {
		return true
	}
	if strings.Contains(errStr, "response error 5") || strings.Contains(errStr, "response error 429") {
		return true
	}
	return strings.Contains(errStr, "empty response")
}
