// Package motivation produces the closing line printed under each task.
package motivation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/config"
	"github.com/orrn/todoprint/internal/i18n"
)

// Provider returns a short motivational line for a task. Implementations
// must return within a bounded time and fall back to a static per-language
// default on any failure.
type Provider interface {
	GetMotivation(ctx context.Context, task string, priority int, language string) string
}

// Static always returns the per-language default line.
type Static struct{}

func (Static) GetMotivation(_ context.Context, _ string, _ int, language string) string {
	return i18n.Get(language, "default_motivation", "Get it done!")
}

type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAI(cfg config.MotivationConfig, log zerolog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    "https://api.openai.com/v1/chat/completions",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "motivation").Logger(),
	}
}

var priorityContext = map[string]map[int]string{
	"de": {
		1: "niedriger Priorität",
		2: "mittlerer Priorität",
		3: "normaler Priorität",
		4: "hoher Priorität",
		5: "dringender Priorität",
	},
	"en": {
		1: "low priority",
		2: "medium priority",
		3: "normal priority",
		4: "high priority",
		5: "urgent priority",
	},
}

// GetMotivation asks the model for a task-specific line. Any error, timeout
// or empty answer falls back to the static default.
func (p *OpenAIProvider) GetMotivation(ctx context.Context, task string, priority int, language string) string {
	fallback := i18n.Get(language, "default_motivation", "Get it done!")

	text, err := p.generate(ctx, task, priority, language)
	if err != nil {
		p.log.Warn().Err(err).Msg("motivation generation failed, using default")
		return fallback
	}
	if text == "" {
		return fallback
	}
	return text
}

func (p *OpenAIProvider) generate(ctx context.Context, task string, priority int, language string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a motivational coach that gives very short, encouraging phrases."},
			{Role: "user", Content: p.prompt(task, priority, language)},
		},
		MaxTokens:   30,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) prompt(task string, priority int, language string) string {
	if language == "de" {
		pc := priorityContext["de"][priority]
		if pc == "" {
			pc = "normaler Priorität"
		}
		return fmt.Sprintf(`Erstelle einen kurzen motivierenden Spruch auf Deutsch für jemanden, der diese Aufgabe mit %s erledigen muss: %q. Der Spruch sollte ermutigend, positiv und spezifisch für die Aufgabe sein. Antworte NUR mit dem motivierenden Spruch, nichts anderes. Keine Anführungszeichen. Der Spruch sollte zwischen 3 und 10 Wörtern lang sein.`, pc, task)
	}
	pc := priorityContext["en"][priority]
	if pc == "" {
		pc = "normal priority"
	}
	return fmt.Sprintf(`Generate a short motivational phrase in English for someone who needs to complete this %s task: %q. The phrase should be encouraging, positive and specific to the task. Reply ONLY with the motivational phrase, nothing else. No quotes. The phrase should be between 3 and 10 words.`, pc, task)
}
