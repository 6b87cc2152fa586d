package retrieval

import (
	"context"
	"log/slog"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

// TextMetadataKey is the metadata field holding a passage's text.
const TextMetadataKey = "text"

// PineconeIndex queries a Pinecone index over its data plane connection.
type PineconeIndex struct {
	conn   *pinecone.IndexConnection
	logger *slog.Logger
}

// NewPineconeIndex connects to the configured index. When no host is
// configured it is resolved by describing the index.
func NewPineconeIndex(ctx context.Context, cfg config.PineconeConfig, l *slog.Logger) (*PineconeIndex, error) {
	l = logger.OrDiscard(l).With("component", "retrieval", "index", cfg.Index)

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "create pinecone client")
	}

	host := cfg.Host
	if host == "" {
		desc, err := pc.DescribeIndex(ctx, cfg.Index)
		if err != nil {
			return nil, errors.Wrapf(err, "describe index %s", cfg.Index)
		}
		host = desc.Host
	}

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to index host %s", host)
	}
	l.Info("pinecone index connected", slog.String("host", host))
	return &PineconeIndex{conn: conn, logger: l}, nil
}

// Query returns the topK nearest passages with their metadata text.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.RetrievedPassage, error) {
	res, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "query by vector")
	}
	return passagesFromMatches(res.Matches), nil
}

// Close releases the index connection.
func (p *PineconeIndex) Close() error {
	return p.conn.Close()
}

// passagesFromMatches keeps every match. A match without text metadata
// yields an empty passage so the context block still lines up.
func passagesFromMatches(matches []*pinecone.ScoredVector) []model.RetrievedPassage {
	passages := make([]model.RetrievedPassage, 0, len(matches))
	for _, m := range matches {
		if m == nil {
			continue
		}
		p := model.RetrievedPassage{Score: m.Score}
		if m.Vector != nil && m.Vector.Metadata != nil {
			p.Text = m.Vector.Metadata.GetFields()[TextMetadataKey].GetStringValue()
		}
		passages = append(passages, p)
	}
	return passages
}
