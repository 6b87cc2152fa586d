package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

// ElevenLabsBaseURL is the public ElevenLabs API root.
const ElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsSynthesizer renders mp3 through the ElevenLabs text-to-speech API.
type ElevenLabsSynthesizer struct {
	APIKey  string
	VoiceID string
	ModelID string
	BaseURL string

	httpClient *http.Client
	logger     *slog.Logger
}

// NewElevenLabsSynthesizer builds a synthesizer for one voice and model.
func NewElevenLabsSynthesizer(apiKey, voiceID, modelID string, l *slog.Logger) *ElevenLabsSynthesizer {
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &ElevenLabsSynthesizer{
		APIKey:     apiKey,
		VoiceID:    voiceID,
		ModelID:    modelID,
		BaseURL:    ElevenLabsBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.OrDiscard(l).With("component", "tts", "provider", "elevenlabs"),
	}
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings map[string]float64 `json:"voice_settings"`
}

// Synthesize writes the spoken text as mp3 into outputDir.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, outputDir, baseName string) (*model.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	endpoint, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(s.BaseURL, "/"), url.PathEscape(s.VoiceID)))
	if err != nil {
		return nil, errors.Wrap(err, "build elevenlabs url")
	}
	q := endpoint.Query()
	q.Set("output_format", "mp3_44100_128")
	endpoint.RawQuery = q.Encode()

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: s.ModelID,
		VoiceSettings: map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("xi-api-key", s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("elevenlabs: bad status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return writeAudio(s.logger, outputDir, baseName, resp.Body)
}
