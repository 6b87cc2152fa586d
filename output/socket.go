// Package output writes reply events to a chat connection.
package output

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
)

// EventBotResponse names the outbound reply event.
const EventBotResponse = "botResponse"

// Event is the envelope of every outbound frame.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// JSONWriter is the write half of a websocket connection.
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// SocketOutput is the single writer of a connection. Replies finishing on
// several goroutines are queued and written one at a time.
type SocketOutput struct {
	ctx     context.Context
	cancel  context.CancelFunc
	ws      JSONWriter
	pending *queue.Queue[model.SemanticResponse]
	notify  chan struct{}
	done    chan struct{}
	start   sync.Once
	logger  *slog.Logger
}

// NewSocketOutput builds a writer over ws.
func NewSocketOutput(ws JSONWriter, l *slog.Logger) (*SocketOutput, error) {
	if ws == nil {
		return nil, errors.New("websocket writer is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SocketOutput{
		ctx:     ctx,
		cancel:  cancel,
		ws:      ws,
		pending: queue.New[model.SemanticResponse](),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger.OrDiscard(l).With("component", "output"),
	}, nil
}

// Send queues resp for writing. It never blocks.
func (o *SocketOutput) Send(resp model.SemanticResponse) {
	if o.ctx.Err() != nil {
		return
	}
	o.pending.Enqueue(resp)
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Start launches the writer goroutine.
func (o *SocketOutput) Start() {
	o.start.Do(func() {
		go o.run()
	})
}

func (o *SocketOutput) run() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			if n := o.pending.Clear(); n > 0 {
				o.logger.Debug("dropped unsent replies", slog.Int("count", n))
			}
			return
		case <-o.notify:
			o.flush()
		}
	}
}

func (o *SocketOutput) flush() {
	for {
		resp, ok := o.pending.Dequeue()
		if !ok {
			return
		}
		if err := o.ws.WriteJSON(Event{Event: EventBotResponse, Data: resp}); err != nil {
			o.logger.Warn("reply write failed", logger.Err(err))
		}
	}
}

// Stop ends the writer and waits for it when it was started.
func (o *SocketOutput) Stop() {
	o.cancel()
	started := true
	o.start.Do(func() { started = false })
	if started {
		<-o.done
	}
}
