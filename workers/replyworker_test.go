package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-relay/model"
)

type responderFunc func(ctx context.Context, q string) model.SemanticResponse

func (f responderFunc) Respond(ctx context.Context, q string) model.SemanticResponse {
	return f(ctx, q)
}

func text(s string) model.Utterance {
	return model.Utterance{SourceKind: model.SourceText, RawText: s}
}

type collector struct {
	mu    sync.Mutex
	resps []model.SemanticResponse
}

func (c *collector) Send(r model.SemanticResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resps = append(c.resps, r)
}

func (c *collector) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.resps))
	for _, r := range c.resps {
		out = append(out, r.Text)
	}
	return out
}

func TestReplyWorker_AnswersEachMessage(t *testing.T) {
	in := make(chan model.Utterance)
	out := &collector{}
	w, err := NewReplyWorker(responderFunc(func(_ context.Context, q string) model.SemanticResponse {
		return model.SemanticResponse{Text: "re: " + q}
	}), in, out, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	in <- text("one")
	in <- text("   ")
	in <- text("two")

	require.Eventually(t, func() bool { return len(out.texts()) == 3 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"re: one", "re:    ", "re: two"}, out.texts())
}

func TestReplyWorker_SlowReplyDoesNotBlockNext(t *testing.T) {
	in := make(chan model.Utterance)
	out := &collector{}
	release := make(chan struct{})
	w, err := NewReplyWorker(responderFunc(func(ctx context.Context, q string) model.SemanticResponse {
		if q == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return model.SemanticResponse{Text: q}
	}), in, out, nil)
	require.NoError(t, err)
	w.Start()

	in <- text("slow")
	in <- text("fast")
	require.Eventually(t, func() bool { return len(out.texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"fast"}, out.texts())

	close(release)
	require.Eventually(t, func() bool { return len(out.texts()) == 2 }, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestReplyWorker_PanicSendsApology(t *testing.T) {
	in := make(chan model.Utterance)
	out := &collector{}
	w, err := NewReplyWorker(responderFunc(func(context.Context, string) model.SemanticResponse {
		panic("boom")
	}), in, out, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	in <- text("hello")
	require.Eventually(t, func() bool { return len(out.texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{TransportApology}, out.texts())
}

func TestReplyWorker_EmptyReplyBecomesApology(t *testing.T) {
	in := make(chan model.Utterance)
	out := &collector{}
	w, err := NewReplyWorker(responderFunc(func(context.Context, string) model.SemanticResponse {
		return model.SemanticResponse{}
	}), in, out, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	in <- text("hello")
	require.Eventually(t, func() bool { return len(out.texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{TransportApology}, out.texts())
}

func TestReplyWorker_ClosedInboundStops(t *testing.T) {
	in := make(chan model.Utterance)
	w, err := NewReplyWorker(responderFunc(func(context.Context, string) model.SemanticResponse {
		return model.SemanticResponse{Text: "x"}
	}), in, &collector{}, nil)
	require.NoError(t, err)
	w.Start()
	close(in)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewReplyWorker_Validation(t *testing.T) {
	r := responderFunc(func(context.Context, string) model.SemanticResponse { return model.SemanticResponse{} })
	_, err := NewReplyWorker(nil, make(chan model.Utterance), &collector{}, nil)
	assert.Error(t, err)
	_, err = NewReplyWorker(r, nil, &collector{}, nil)
	assert.Error(t, err)
	_, err = NewReplyWorker(r, make(chan model.Utterance), nil, nil)
	assert.Error(t, err)
}
