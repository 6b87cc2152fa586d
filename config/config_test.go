package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "gpt-4.1-nano", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-ada-002", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 3, cfg.Pinecone.TopK)
	assert.Equal(t, "openai", cfg.Speech.Provider)
	assert.Equal(t, "gpt-4o-mini-tts", cfg.Speech.Model)
	assert.Equal(t, "alloy", cfg.Speech.Voice)
	assert.Equal(t, "base.en", cfg.Transcription.WhisperModel)
	assert.Equal(t, "whisper-1", cfg.Transcription.RemoteModel)
	assert.Equal(t, 15*time.Minute, cfg.Storage.AudioTTL)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Retrieval)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.LocalTranscription)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.AllowedOrigins)
	assert.False(t, cfg.HasOpenAI())
	assert.False(t, cfg.HasPinecone())
	assert.Equal(t, ":3000", cfg.Addr())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":               "8080",
		"OPENAI_API_KEY":     "sk-test",
		"PINECONE_API_KEY":   "pc-test",
		"PINECONE_INDEX":     "medibot",
		"RETRIEVAL_TOP_K":    "5",
		"TTS_VOICE":          "nova",
		"GENERATION_TIMEOUT": "5s",
		"ALLOWED_ORIGINS":    "https://a.example, https://b.example",
		"FRONTEND_URL":       "https://front.example",
		"LOG_LEVEL":          "DEBUG",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.HasOpenAI())
	assert.True(t, cfg.HasPinecone())
	assert.Equal(t, 5, cfg.Pinecone.TopK)
	assert.Equal(t, "nova", cfg.Speech.Voice)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Generation)
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://front.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		errorMsg string
	}{
		{"bad port number", map[string]string{"PORT": "abc"}, "PORT: invalid integer"},
		{"port out of range", map[string]string{"PORT": "70000"}, "port must be between 1 and 65535"},
		{"bad duration", map[string]string{"AUDIO_TTL": "soon"}, "AUDIO_TTL: invalid duration"},
		{"zero top k", map[string]string{"RETRIEVAL_TOP_K": "0"}, "top_k must be at least 1"},
		{"unknown tts provider", map[string]string{"TTS_PROVIDER": "polly"}, "tts provider must be"},
		{"elevenlabs without key", map[string]string{"TTS_PROVIDER": "elevenlabs"}, "requires ELEVEN_LABS_API_KEY"},
		{"negative timeout", map[string]string{"SYNTHESIS_TIMEOUT": "-1s"}, "synthesis timeout must be positive"},
		{"whisper outlasts transcription", map[string]string{"WHISPER_TIMEOUT": "2m"}, "must be shorter than transcription timeout"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "log level must be one of"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "log format must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("WHISPER_MODEL=small.en\n"), 0o644))
	t.Setenv("WHISPER_MODEL", "")
	os.Unsetenv("WHISPER_MODEL")

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "small.en", cfg.Transcription.WhisperModel)
}
