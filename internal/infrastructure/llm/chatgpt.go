package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"PaperHarvester/internal/config"
	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/ports"
)

const (
	minScore = 1
	maxScore = 5

	defaultScorePattern = `(?i)(?:score|分数)\s*[:：]\s*(\d+)`
)

// ChatGPTClient implements ports.Summarizer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	temperature  float64
	maxTokens    int
	scoreExpr    *regexp.Regexp
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Summarizer = (*ChatGPTClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewChatGPTClient builds a client from configuration. An invalid score pattern
// falls back to the default one.
func NewChatGPTClient(cfg config.LLMConfig, logger *slog.Logger) *ChatGPTClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	expr, err := regexp.Compile(cfg.ScorePattern)
	if err != nil || cfg.ScorePattern == "" || expr.NumSubexp() < 1 {
		if cfg.ScorePattern != "" {
			logger.Warn("invalid score pattern, using default", "pattern", cfg.ScorePattern)
		}
		expr = regexp.MustCompile(defaultScorePattern)
	}

	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		scoreExpr:    expr,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Summarize asks the model for a summary of the paper and extracts the score.
// Failures come back as an empty summary with score 0 and the error text.
func (c *ChatGPTClient) Summarize(ctx context.Context, title, abstract, introduction string) domain.Summary {
	text, err := c.complete(ctx, userPrompt(title, abstract, introduction))
	if err != nil {
		c.logger.Warn("summary failed", "title", title, "error", err)
		return domain.Summary{Err: err.Error()}
	}
	return domain.Summary{Text: text, Score: c.score(text)}
}

func (c *ChatGPTClient) complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("completion is empty")
	}
	return text, nil
}

// score returns the first marker value when it is within 1..5, else 0.
func (c *ChatGPTClient) score(text string) int {
	m := c.scoreExpr.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < minScore || v > maxScore {
		return 0
	}
	return v
}

func userPrompt(title, abstract, introduction string) string {
	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(title)
	sb.WriteString("\n\nAbstract: ")
	sb.WriteString(abstract)
	sb.WriteString("\n\nIntroduction: ")
	sb.WriteString(introduction)
	return sb.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a research assistant. Summarize the paper and end with 'Score: x' where x is 1-5."
	}
	return prompt
}
