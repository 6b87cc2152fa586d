package tts

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-relay/config"
)

// Provider names accepted by TTS_PROVIDER.
const (
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// New selects the synthesizer named by cfg.Provider. client is only used by
// the OpenAI provider.
func New(cfg config.SpeechConfig, client *openai.Client, l *slog.Logger) (Synthesizer, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		if client == nil {
			return nil, errors.New("openai speech needs an OpenAI client")
		}
		return NewOpenAISynthesizer(client, cfg.Model, cfg.Voice, l), nil
	case ProviderElevenLabs:
		if cfg.ElevenLabsAPIKey == "" {
			return nil, errors.New("elevenlabs speech needs ELEVEN_LABS_API_KEY")
		}
		return NewElevenLabsSynthesizer(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID, l), nil
	default:
		return nil, errors.Errorf("unknown speech provider %q", cfg.Provider)
	}
}
