package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete relay configuration, read from the environment.
type Config struct {
	Port        int
	Environment string

	OpenAI        OpenAIConfig
	Pinecone      PineconeConfig
	Speech        SpeechConfig
	Transcription TranscriptionConfig
	Storage       StorageConfig
	Timeouts      TimeoutConfig
	Logging       LoggingConfig

	AllowedOrigins []string
	MaxUploadBytes int
}

// OpenAIConfig covers generation, embeddings and the remote transcription fallback.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
}

// PineconeConfig identifies the vector index used for retrieval.
type PineconeConfig struct {
	APIKey    string
	Index     string
	Host      string
	Namespace string
	TopK      int
}

// SpeechConfig selects the synthesis provider and voice.
type SpeechConfig struct {
	Provider string // openai|elevenlabs
	Model    string
	Voice    string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
}

// TranscriptionConfig covers the local whisper.cpp binary, the remote model
// and the ffmpeg converter.
type TranscriptionConfig struct {
	WhisperBin      string
	WhisperModel    string
	WhisperModelDir string
	RemoteModel     string
	FFmpegPath      string
}

// StorageConfig points at the shared uploads root and the static client.
type StorageConfig struct {
	UploadsDir    string
	PublicDir     string
	AudioTTL      time.Duration
	SweepInterval time.Duration
}

// TimeoutConfig holds one deadline per pipeline stage.
type TimeoutConfig struct {
	Retrieval     time.Duration
	Generation    time.Duration
	Synthesis     time.Duration
	Conversion    time.Duration
	Transcription time.Duration
	// LocalTranscription bounds the whisper.cpp attempt inside Transcription.
	LocalTranscription time.Duration
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

var defaultOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal in deployed environments
	_ = godotenv.Load(envFiles...)
	return FromEnv(os.Getenv)
}

// FromEnv builds a validated Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Port:        r.int("PORT", 3000),
		Environment: r.str("APP_ENV", "development"),
		OpenAI: OpenAIConfig{
			APIKey:         r.str("OPENAI_API_KEY", ""),
			BaseURL:        r.str("OPENAI_BASE_URL", ""),
			ChatModel:      r.str("CHAT_MODEL", "gpt-4.1-nano"),
			EmbeddingModel: r.str("EMBEDDING_MODEL", "text-embedding-ada-002"),
		},
		Pinecone: PineconeConfig{
			APIKey:    r.str("PINECONE_API_KEY", ""),
			Index:     r.str("PINECONE_INDEX", ""),
			Host:      r.str("PINECONE_HOST", ""),
			Namespace: r.str("PINECONE_NAMESPACE", ""),
			TopK:      r.int("RETRIEVAL_TOP_K", 3),
		},
		Speech: SpeechConfig{
			Provider:          strings.ToLower(r.str("TTS_PROVIDER", "openai")),
			Model:             r.str("TTS_MODEL", "gpt-4o-mini-tts"),
			Voice:             r.str("TTS_VOICE", "alloy"),
			ElevenLabsAPIKey:  r.str("ELEVEN_LABS_API_KEY", ""),
			ElevenLabsVoiceID: r.str("ELEVEN_LABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
			ElevenLabsModelID: r.str("ELEVEN_LABS_MODEL_ID", "eleven_multilingual_v2"),
		},
		Transcription: TranscriptionConfig{
			WhisperBin:      r.str("WHISPER_BIN", "whisper-cli"),
			WhisperModel:    r.str("WHISPER_MODEL", "base.en"),
			WhisperModelDir: r.str("WHISPER_MODEL_DIR", "./models"),
			RemoteModel:     r.str("REMOTE_TRANSCRIPTION_MODEL", "whisper-1"),
			FFmpegPath:      r.str("FFMPEG_PATH", "ffmpeg"),
		},
		Storage: StorageConfig{
			UploadsDir:    r.str("UPLOADS_DIR", "./uploads"),
			PublicDir:     r.str("PUBLIC_DIR", "./public"),
			AudioTTL:      r.duration("AUDIO_TTL", 15*time.Minute),
			SweepInterval: r.duration("SWEEP_INTERVAL", time.Minute),
		},
		Timeouts: TimeoutConfig{
			Retrieval:          r.duration("RETRIEVAL_TIMEOUT", 10*time.Second),
			Generation:         r.duration("GENERATION_TIMEOUT", 30*time.Second),
			Synthesis:          r.duration("SYNTHESIS_TIMEOUT", 30*time.Second),
			Conversion:         r.duration("CONVERSION_TIMEOUT", 60*time.Second),
			Transcription:      r.duration("TRANSCRIPTION_TIMEOUT", 120*time.Second),
			LocalTranscription: r.duration("WHISPER_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(r.str("LOG_FORMAT", "text")),
		},
		AllowedOrigins: origins(r.str("ALLOWED_ORIGINS", ""), r.str("FRONTEND_URL", "")),
		MaxUploadBytes: r.int("MAX_UPLOAD_BYTES", 25<<20),
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(r.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. Missing provider keys are not an
// error: the composition root wires degraded collaborators instead.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Pinecone.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be at least 1, got %d", c.Pinecone.TopK)
	}
	switch c.Speech.Provider {
	case "openai":
	case "elevenlabs":
		if c.Speech.ElevenLabsAPIKey == "" {
			return fmt.Errorf("tts provider elevenlabs requires ELEVEN_LABS_API_KEY")
		}
	default:
		return fmt.Errorf("tts provider must be 'openai' or 'elevenlabs', got '%s'", c.Speech.Provider)
	}
	if c.Storage.UploadsDir == "" {
		return fmt.Errorf("uploads_dir cannot be empty")
	}
	if c.Storage.AudioTTL <= 0 {
		return fmt.Errorf("audio_ttl must be positive, got %s", c.Storage.AudioTTL)
	}
	if c.Storage.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.Storage.SweepInterval)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts: %w", err)
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024, got %d", c.MaxUploadBytes)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("log level must be one of [debug, info, warn, error], got '%s'", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("log format must be 'json' or 'text', got '%s'", c.Logging.Format)
	}
	return nil
}

// Validate rejects non-positive stage deadlines.
func (t TimeoutConfig) Validate() error {
	stages := []struct {
		name string
		d    time.Duration
	}{
		{"retrieval", t.Retrieval},
		{"generation", t.Generation},
		{"synthesis", t.Synthesis},
		{"conversion", t.Conversion},
		{"transcription", t.Transcription},
		{"whisper", t.LocalTranscription},
	}
	for _, s := range stages {
		if s.d <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %s", s.name, s.d)
		}
	}
	if t.LocalTranscription >= t.Transcription {
		return fmt.Errorf("whisper timeout %s must be shorter than transcription timeout %s", t.LocalTranscription, t.Transcription)
	}
	return nil
}

// HasOpenAI reports whether an OpenAI key is configured.
func (c *Config) HasOpenAI() bool { return c.OpenAI.APIKey != "" }

// HasPinecone reports whether the retrieval provider is usable.
func (c *Config) HasPinecone() bool {
	return c.Pinecone.APIKey != "" && (c.Pinecone.Index != "" || c.Pinecone.Host != "")
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func origins(list, frontend string) []string {
	var out []string
	if strings.TrimSpace(list) == "" {
		out = append(out, defaultOrigins...)
	} else {
		for _, o := range strings.Split(list, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	if frontend = strings.TrimSpace(frontend); frontend != "" {
		out = append(out, frontend)
	}
	return out
}

type reader struct {
	getenv func(string) string
	errs   []string
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
