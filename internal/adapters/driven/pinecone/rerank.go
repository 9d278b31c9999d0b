package pinecone

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Rerank defaults.
const (
	DefaultRerankHost  = "https://api.pinecone.io"
	DefaultRerankModel = "bge-reranker-v2-m3"
)

// RerankConfig holds settings for the hosted reranking endpoint.
type RerankConfig struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// Host is the inference host (default: https://api.pinecone.io).
	Host string

	// Model is the reranking model (default: bge-reranker-v2-m3).
	Model string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// Reranker scores candidate documents against a query via Pinecone's
// hosted inference endpoint.
type Reranker struct {
	client *Client
	model  string
}

// NewReranker creates a reranking adapter.
func NewReranker(cfg RerankConfig) (*Reranker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: API key is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultRerankHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}

	client, err := NewClient(Config{
		APIKey:  cfg.APIKey,
		Host:    cfg.Host,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Reranker{client: client, model: cfg.Model}, nil
}

type rerankRequest struct {
	Model           string              `json:"model"`
	Query           string              `json:"query"`
	Documents       []map[string]string `json:"documents"`
	TopN            int                 `json:"top_n"`
	RankFields      []string            `json:"rank_fields"`
	ReturnDocuments bool                `json:"return_documents"`
}

type rerankResponse struct {
	Data []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"data"`
}

// Rerank scores docs against the query and returns the service's
// ordering. The call accepts at most 100 documents; the engine enforces
// the cap before invoking it.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []driven.RerankDocument, topN int) ([]driven.RerankScore, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}

	req := rerankRequest{
		Model:      r.model,
		Query:      query,
		TopN:       topN,
		RankFields: []string{"text"},
	}
	for _, d := range docs {
		req.Documents = append(req.Documents, map[string]string{
			"id":   d.Key,
			"text": d.Text,
		})
	}

	var resp rerankResponse
	if err := r.client.postJSON(ctx, "/rerank", req, &resp); err != nil {
		return nil, err
	}

	scores := make([]driven.RerankScore, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(docs) {
			continue
		}
		scores = append(scores, driven.RerankScore{
			Key:   docs[d.Index].Key,
			Score: d.Score,
		})
	}
	return scores, nil
}
