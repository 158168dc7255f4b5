// Package coach generates daily routines with an OpenAI-compatible chat completions API.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"example.com/chizen/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
	maxBodyBytes   = 1 << 20
)

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("coach: api key not configured")

// Config controls the upstream endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Client implements domain.RoutineGenerator.
type Client struct {
	http *http.Client
	cfg  Config
	url  string
	log  logrus.FieldLogger
}

var _ domain.RoutineGenerator = (*Client)(nil)

// NewClient constructs a Client. A nil logger discards output.
func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		url:  completionsURL(cfg.BaseURL),
		log:  log,
	}
}

func completionsURL(base string) string {
	if base == "" {
		base = defaultBaseURL
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// Generate asks the model for a routine matching the profile.
func (c *Client) Generate(ctx context.Context, profile domain.Profile) (domain.Routine, error) {
	if c.cfg.APIKey == "" {
		return domain.Routine{}, ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(profile)},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return domain.Routine{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.Routine{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Routine{}, fmt.Errorf("coach: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Routine{}, fmt.Errorf("coach: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.Routine{}, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return domain.Routine{}, errors.New("coach: response has no choices")
	}
	c.log.WithFields(logrus.Fields{
		"model":       gjson.GetBytes(raw, "model").String(),
		"tokens":      gjson.GetBytes(raw, "usage.total_tokens").Int(),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Debug("routine generated")

	return parseRoutine(content.String())
}

// UpstreamError reports a non-successful API response.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("coach: upstream status %d: %s", e.Status, e.Message)
}

type routineDoc struct {
	Title           string     `json:"title"`
	TotalDuration   int        `json:"total_duration"`
	FocusArea       string     `json:"focus_area"`
	DifficultyLevel int        `json:"difficulty_level"`
	Blocks          []blockDoc `json:"blocks"`
	CompletionXP    int        `json:"completion_xp"`
	DailyWisdom     string     `json:"daily_wisdom"`
}

type blockDoc struct {
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	DurationSeconds int      `json:"duration_seconds"`
	Instructions    []string `json:"instructions"`
	Difficulty      int      `json:"difficulty"`
	AudioCue        string   `json:"audio_cue"`
	Benefits        []string `json:"benefits"`
}

func parseRoutine(content string) (domain.Routine, error) {
	payload := ExtractJSON(content)
	if payload == "" {
		return domain.Routine{}, errors.New("coach: no JSON object in model output")
	}
	var doc routineDoc
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return domain.Routine{}, fmt.Errorf("coach: parse routine: %w", err)
	}
	if len(doc.Blocks) == 0 {
		return domain.Routine{}, errors.New("coach: routine has no blocks")
	}

	r := domain.Routine{
		Title:                doc.Title,
		FocusArea:            doc.FocusArea,
		TotalDurationMinutes: doc.TotalDuration,
		DifficultyLevel:      doc.DifficultyLevel,
		CompletionXP:         doc.CompletionXP,
		DailyWisdom:          doc.DailyWisdom,
		Source:               domain.SourceAI,
	}
	for _, b := range doc.Blocks {
		r.Blocks = append(r.Blocks, domain.ExerciseBlock{
			Category:        domain.Category(b.Type),
			Name:            b.Name,
			DurationSeconds: b.DurationSeconds,
			Instructions:    b.Instructions,
			Difficulty:      b.Difficulty,
			AudioCue:        b.AudioCue,
			Benefits:        b.Benefits,
		})
	}
	r.Normalize()
	return r, nil
}
