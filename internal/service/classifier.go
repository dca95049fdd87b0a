package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/pkg/config"
)

const moderationPrompt = `Ты модератор комментариев на сайте опроса жителей дачного посёлка.

Отклоняй комментарии ТОЛЬКО если они содержат:
1. Нецензурную лексику (мат, оскорбления)
2. Агрессию, угрозы, призывы к насилию
3. Очевидный спам (повторяющиеся символы, бессмысленный набор букв)

РАЗРЕШАЙ короткие приветствия, простые вопросы, вежливые обращения,
краткие мнения и предложения.

Ответь ТОЛЬКО в формате JSON:
{"approved": true/false, "reason": "краткая причина отклонения или 'OK'"}

Комментарий: `

// ChatClassifier calls an OpenAI-compatible chat-completions endpoint
// to obtain a moderation verdict. Calls are bounded by the configured
// timeout; every failure mode surfaces as an error and the gate above
// treats it as fail-open.
type ChatClassifier struct {
	cfg    config.ModerationConfig
	client *http.Client
	logger *zap.Logger
}

// NewChatClassifier constructs a classifier from configuration.
func NewChatClassifier(cfg config.ModerationConfig, logger *zap.Logger) *ChatClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatClassifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Classify submits the comment and parses the JSON verdict.
func (c *ChatClassifier) Classify(ctx context.Context, text string) (ClassifierVerdict, error) {
	payload := map[string]interface{}{
		"model":       c.cfg.Model,
		"temperature": 0.1,
		"max_tokens":  100,
		"messages": []map[string]string{
			{"role": "user", "content": moderationPrompt + text},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ClassifierVerdict{}, fmt.Errorf("marshal classifier request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ClassifierVerdict{}, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return ClassifierVerdict{}, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return ClassifierVerdict{}, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, raw)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return ClassifierVerdict{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return ClassifierVerdict{}, fmt.Errorf("classifier returned no choices")
	}

	content := stripCodeFences(completion.Choices[0].Message.Content)
	var verdict struct {
		Approved *bool  `json:"approved"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return ClassifierVerdict{}, fmt.Errorf("unparseable classifier verdict %q: %w", content, err)
	}

	approved := true
	if verdict.Approved != nil {
		approved = *verdict.Approved
	}
	reason := verdict.Reason
	if reason == "" {
		reason = "OK"
	}
	c.logger.Debug("classifier verdict", zap.Bool("approved", approved), zap.String("reason", reason))
	return ClassifierVerdict{Approved: approved, Reason: reason}, nil
}

// stripCodeFences removes markdown fencing some models wrap around JSON.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
