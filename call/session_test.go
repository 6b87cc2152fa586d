package call

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-relay/model"
)

type fakeConn struct {
	frames chan []byte

	mu      sync.Mutex
	written []map[string]any
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 8)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	f, ok := <-c.frames
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, f, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) writtenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

type echo struct{}

func (echo) Respond(_ context.Context, q string) model.SemanticResponse {
	return model.SemanticResponse{Text: "echo: " + q}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
		ok    bool
	}{
		{"user message event", `{"event":"userMessage","data":"What is flu?"}`, "What is flu?", true},
		{"object payload", `{"event":"userMessage","data":{"text":"hi"}}`, "hi", true},
		{"bare text", "hello there", "hello there", true},
		{"json without event", `{"foo":1}`, `{"foo":1}`, true},
		{"other event", `{"event":"typing","data":"x"}`, "", false},
		{"blank frame", "   ", "   ", true},
		{"empty data", `{"event":"userMessage","data":""}`, "", true},
		{"missing data", `{"event":"userMessage"}`, "", true},
		{"number data", `{"event":"userMessage","data":42}`, "42", true},
		{"object without text", `{"event":"userMessage","data":{"q":1}}`, `{"q":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMessage([]byte(tt.frame))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_RepliesAndCleansUp(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSession(conn, echo{}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	conn.frames <- []byte(`{"event":"userMessage","data":"ping"}`)
	require.Eventually(t, func() bool { return conn.writtenCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	frame := conn.written[0]
	conn.mu.Unlock()
	assert.Equal(t, "botResponse", frame["event"])
	assert.Equal(t, map[string]any{"text": "echo: ping", "audioUrl": nil}, frame["data"])

	close(conn.frames)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not end after the client left")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
}

func TestSession_AnswersEveryUserMessage(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSession(conn, echo{}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	conn.frames <- []byte(`{"event":"userMessage","data":""}`)
	conn.frames <- []byte("   ")
	conn.frames <- []byte(`{"event":"userMessage","data":42}`)
	conn.frames <- []byte(`{"event":"userMessage","data":"hi"}`)
	conn.frames <- []byte(`{"event":"typing"}`)

	require.Eventually(t, func() bool { return conn.writtenCount() == 4 }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	texts := make([]string, 0, len(conn.written))
	for _, f := range conn.written {
		texts = append(texts, f["data"].(map[string]any)["text"].(string))
	}
	conn.mu.Unlock()
	assert.ElementsMatch(t, []string{"echo: ", "echo:    ", "echo: 42", "echo: hi"}, texts)

	close(conn.frames)
	<-done
	assert.Equal(t, 4, conn.writtenCount())
}
