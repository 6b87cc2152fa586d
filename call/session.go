// Package call binds one chat connection to its reply worker and writer.
package call

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/output"
	"github.com/mrsingh-rishi/voice-relay/workers"
)

// EventUserMessage names the inbound chat event.
const EventUserMessage = "userMessage"

// Conn is the part of a websocket connection a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Session is one connected chat client.
type Session struct {
	id             string
	ws             Conn
	ReplyWorker    *workers.ReplyWorker
	OutputWorker   *output.SocketOutput
	InboundChannel chan model.Utterance
	cleanup        sync.Once
	logger         *slog.Logger
}

// NewSession wires a reply worker and a socket writer to ws.
func NewSession(ws Conn, responder workers.Responder, l *slog.Logger) (*Session, error) {
	id := uuid.NewString()
	l = logger.OrDiscard(l).With("session", id)

	outputWorker, err := output.NewSocketOutput(ws, l)
	if err != nil {
		return nil, err
	}
	inbound := make(chan model.Utterance)
	replyWorker, err := workers.NewReplyWorker(responder, inbound, outputWorker, l)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:             id,
		ws:             ws,
		ReplyWorker:    replyWorker,
		OutputWorker:   outputWorker,
		InboundChannel: inbound,
		logger:         l.With("component", "session"),
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Start runs the session until the client disconnects. It blocks.
func (s *Session) Start() {
	s.OutputWorker.Start()
	s.ReplyWorker.Start()
	s.logger.Info("client connected")

	defer s.CleanupResources()
	s.receive()
}

func (s *Session) receive() {
	for {
		_, frame, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.Warn("websocket read error", logger.Err(err))
			}
			return
		}

		text, ok := ParseMessage(frame)
		if !ok {
			s.logger.Debug("ignoring frame", slog.Int("bytes", len(frame)))
			continue
		}
		s.InboundChannel <- model.Utterance{SourceKind: model.SourceText, RawText: text}
	}
}

// ParseMessage extracts the user's text from a frame. A userMessage event
// carries it in data; a frame that is not a JSON event is the text itself.
// Data that is neither a string nor {"text": ...} is passed on as its JSON
// text. Other events are ignored.
func ParseMessage(frame []byte) (string, bool) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(frame), true
	}

	var ev inboundEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil || ev.Event == "" {
		return string(frame), true
	}
	if ev.Event != EventUserMessage {
		return "", false
	}

	data := bytes.TrimSpace(ev.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", true
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text, true
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Text != nil {
		return *obj.Text, true
	}
	return string(data), true
}

// CleanupResources stops the workers and closes the connection. Safe to call
// more than once.
func (s *Session) CleanupResources() {
	s.cleanup.Do(func() {
		if s.ReplyWorker != nil {
			s.ReplyWorker.Stop()
		}
		if s.OutputWorker != nil {
			s.OutputWorker.Stop()
		}
		if s.ws != nil {
			_ = s.ws.Close()
		}
	})
}
