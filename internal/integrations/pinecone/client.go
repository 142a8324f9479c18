// Package pinecone searches summarized news topics stored in a Pinecone index.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pinecone-io/go-pinecone/pinecone"

	"jarvis-webhook/internal/domain"
)

// Metadata keys written by the news ingestion job.
const (
	fieldTitle   = "title"
	fieldSummary = "summary"
	fieldSources = "sources"
)

// indexQuerier is the slice of *pinecone.IndexConnection the news search uses.
type indexQuerier interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
}

type TopicIndex struct {
	index indexQuerier
}

func New(index indexQuerier) (*TopicIndex, error) {
	if index == nil {
		return nil, errors.New("pinecone: index must not be nil")
	}
	return &TopicIndex{index: index}, nil
}

// Open connects to the index served at host.
func Open(apiKey, host, namespace string) (*TopicIndex, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("pinecone: api key must not be empty")
	}
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("pinecone: index host must not be empty")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: create client: %w", err)
	}
	conn, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect to %s: %w", host, err)
	}
	return New(conn)
}

// SearchTopics returns up to topK topics closest to vector, best match first.
// Matches without a title or summary are skipped.
func (t *TopicIndex) SearchTopics(ctx context.Context, vector []float32, topK int) ([]domain.NewsTopic, error) {
	if len(vector) == 0 {
		return nil, errors.New("pinecone: query vector must not be empty")
	}
	if topK <= 0 {
		topK = 1
	}

	res, err := t.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}
	if res == nil {
		return nil, nil
	}

	topics := make([]domain.NewsTopic, 0, len(res.Matches))
	for _, match := range res.Matches {
		if match == nil || match.Vector == nil || match.Vector.Metadata == nil {
			continue
		}
		fields := match.Vector.Metadata.Fields

		topic := domain.NewsTopic{Score: match.Score}
		if v, ok := fields[fieldTitle]; ok {
			topic.Title = strings.TrimSpace(v.GetStringValue())
		}
		if v, ok := fields[fieldSummary]; ok {
			topic.Summary = strings.TrimSpace(v.GetStringValue())
		}
		if v, ok := fields[fieldSources]; ok && v.GetListValue() != nil {
			for _, s := range v.GetListValue().GetValues() {
				if src := s.GetStringValue(); src != "" {
					topic.Sources = append(topic.Sources, src)
				}
			}
		}
		if topic.Title == "" || topic.Summary == "" {
			continue
		}
		topics = append(topics, topic)
	}
	return topics, nil
}
