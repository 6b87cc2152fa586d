package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-relay/fallback"
)

func openAIServer(t *testing.T, status int, body string, calls *int32) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

type recordedAttempt struct {
	chain, strategy string
	failed          bool
}

type attemptRecorder struct {
	attempts []recordedAttempt
}

func (r *attemptRecorder) RecordStrategy(chain, strategy string, err error) {
	r.attempts = append(r.attempts, recordedAttempt{chain, strategy, err != nil})
}

func TestOpenAIRemote_Transcribe(t *testing.T) {
	var calls int32
	client := openAIServer(t, http.StatusOK, `{"text":"I have a headache"}`, &calls)

	text, err := NewOpenAIRemote(client, "", nil).Transcribe(context.Background(), newWav(t))
	require.NoError(t, err)
	assert.Equal(t, "I have a headache", text)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestOpenAIRemote_EmptyTextIsSuccess(t *testing.T) {
	var calls int32
	client := openAIServer(t, http.StatusOK, `{"text":""}`, &calls)

	text, err := NewOpenAIRemote(client, "whisper-1", nil).Transcribe(context.Background(), newWav(t))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscriber_LocalWinsRemoteUntouched(t *testing.T) {
	bin, model := fakeWhisper(t, "local words", 0)
	var calls int32
	client := openAIServer(t, http.StatusOK, `{"text":"remote words"}`, &calls)
	rec := &attemptRecorder{}

	tr := NewTranscriber([]fallback.Strategy[string, string]{
		NewLocalWhisper(bin, model, "", nil).Strategy(),
		NewOpenAIRemote(client, "", nil).Strategy(),
	}, nil, rec)

	text, err := tr.Transcribe(context.Background(), newWav(t))
	require.NoError(t, err)
	assert.Equal(t, "local words", text)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, []recordedAttempt{{ChainName, "local-whisper", false}}, rec.attempts)
}

func TestTranscriber_FallsBackOnEmptyLocal(t *testing.T) {
	bin, model := fakeWhisper(t, "", 0)
	var calls int32
	client := openAIServer(t, http.StatusOK, `{"text":"remote words"}`, &calls)

	tr := NewTranscriber([]fallback.Strategy[string, string]{
		NewLocalWhisper(bin, model, "", nil).Strategy(),
		NewOpenAIRemote(client, "", nil).Strategy(),
	}, nil, nil)

	text, err := tr.Transcribe(context.Background(), newWav(t))
	require.NoError(t, err)
	assert.Equal(t, "remote words", text)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"local-whisper", "openai"}, tr.Strategies())
}

func TestTranscriber_HungLocalFallsBackToRemote(t *testing.T) {
	bin, model := hangingWhisper(t)
	var calls int32
	client := openAIServer(t, http.StatusOK, `{"text":"remote words"}`, &calls)
	rec := &attemptRecorder{}

	tr := NewTranscriber([]fallback.Strategy[string, string]{
		NewLocalWhisper(bin, model, "", nil).WithTimeout(100 * time.Millisecond).Strategy(),
		NewOpenAIRemote(client, "", nil).Strategy(),
	}, nil, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	text, err := tr.Transcribe(ctx, newWav(t))
	require.NoError(t, err)
	assert.Equal(t, "remote words", text)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []recordedAttempt{
		{ChainName, "local-whisper", true},
		{ChainName, "openai", false},
	}, rec.attempts)
}

func TestTranscriber_AllFail(t *testing.T) {
	bin, model := fakeWhisper(t, "", 1)
	var calls int32
	client := openAIServer(t, http.StatusInternalServerError,
		`{"error":{"message":"boom","type":"server_error"}}`, &calls)

	tr := NewTranscriber([]fallback.Strategy[string, string]{
		NewLocalWhisper(bin, model, "", nil).Strategy(),
		NewOpenAIRemote(client, "", nil).Strategy(),
	}, nil, nil)

	wav := newWav(t)
	_, err := tr.Transcribe(context.Background(), wav)
	require.Error(t, err)

	var terr *TranscriptionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, wav, terr.Audio)

	var exhausted *fallback.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Attempts, 2)
}

func TestTranscriber_NoStrategies(t *testing.T) {
	_, err := NewTranscriber(nil, nil, nil).Transcribe(context.Background(), "x.wav")
	var terr *TranscriptionError
	assert.ErrorAs(t, err, &terr)
}
