// Package workers runs per-connection reply processing.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

// TransportApology is sent when a reply could not be produced at all.
const TransportApology = "Sorry, I encountered an error processing your message."

// Responder produces the reply to one message.
type Responder interface {
	Respond(ctx context.Context, query string) model.SemanticResponse
}

// Emitter delivers a reply to the connection.
type Emitter interface {
	Send(resp model.SemanticResponse)
}

// ReplyWorker answers every inbound message on its own goroutine, so a slow
// reply does not hold back the next one. Blank messages are answered too.
type ReplyWorker struct {
	ctx            context.Context
	cancel         context.CancelFunc
	Responder      Responder
	InboundChannel <-chan model.Utterance
	Output         Emitter
	wg             sync.WaitGroup
	logger         *slog.Logger
}

// NewReplyWorker validates its collaborators and builds a worker.
func NewReplyWorker(responder Responder, inbound <-chan model.Utterance, output Emitter, l *slog.Logger) (*ReplyWorker, error) {
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if inbound == nil {
		return nil, fmt.Errorf("inbound channel is required")
	}
	if output == nil {
		return nil, fmt.Errorf("output is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ReplyWorker{
		ctx:            ctx,
		cancel:         cancel,
		Responder:      responder,
		InboundChannel: inbound,
		Output:         output,
		logger:         logger.OrDiscard(l).With("component", "reply-worker"),
	}, nil
}

// Start consumes the inbound channel until Stop or until it is closed.
func (w *ReplyWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				return
			case utt, ok := <-w.InboundChannel:
				if !ok {
					return
				}
				w.wg.Add(1)
				go w.handle(utt)
			}
		}
	}()
}

func (w *ReplyWorker) handle(utt model.Utterance) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("reply failed", slog.Any("panic", r))
			w.Output.Send(model.SemanticResponse{Text: TransportApology})
		}
	}()

	w.logger.Info("message received",
		slog.String("source", string(utt.SourceKind)),
		slog.Int("chars", len(utt.RawText)),
	)
	resp := w.Responder.Respond(w.ctx, utt.RawText)
	if resp.Text == "" {
		resp = model.SemanticResponse{Text: TransportApology}
	}
	w.Output.Send(resp)
}

// Stop cancels in-flight replies and waits for them to finish.
func (w *ReplyWorker) Stop() {
	w.cancel()
	w.wg.Wait()
}
