// Package narration turns coaching cues into stored audio through ElevenLabs text-to-speech.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultElevenLabsURL = "https://api.elevenlabs.io/v1"
	defaultVoiceID       = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID       = "eleven_monolingual_v1"
	maxAudioBytes        = 10 << 20
)

// Speaker converts text to encoded audio.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
	VoiceID() string
}

// ElevenLabs calls the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	client  *http.Client
	baseURL string
	apiKey  string
	voiceID string
	modelID string
}

// NewElevenLabs constructs a client. Empty voiceID and baseURL fall back to the service defaults.
func NewElevenLabs(apiKey, voiceID, baseURL string, timeout time.Duration) *ElevenLabs {
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	if baseURL == "" {
		baseURL = defaultElevenLabsURL
	}
	return &ElevenLabs{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: defaultModelID,
	}
}

// VoiceID returns the configured voice.
func (e *ElevenLabs) VoiceID() string { return e.voiceID }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Speak returns MPEG audio for text.
func (e *ElevenLabs) Speak(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.75,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/text-to-speech/"+e.voiceID, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio")
	}
	return audio, nil
}
