package capability

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/prompts"
)

const DefaultNewsTopK = 2

// News answers questions grounded in the closest summarized news topics.
type News struct {
	embedder   Embedder
	embedModel string
	index      TopicSearcher
	topK       int
	llm        LLM
	model      string
	prompts    *prompts.Set
	rt         Runtime
}

type NewsConfig struct {
	EmbeddingModel string
	Model          string
	TopK           int
}

func NewNews(e Embedder, index TopicSearcher, llm LLM, p *prompts.Set, cfg NewsConfig, rt Runtime) (*News, error) {
	if e == nil || index == nil || llm == nil || p == nil {
		return nil, errors.New("capability: news dependencies must not be nil")
	}
	if cfg.EmbeddingModel == "" || cfg.Model == "" {
		return nil, errors.New("capability: news models must not be empty")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultNewsTopK
	}
	return &News{
		embedder:   e,
		embedModel: cfg.EmbeddingModel,
		index:      index,
		topK:       cfg.TopK,
		llm:        llm,
		model:      cfg.Model,
		prompts:    p,
		rt:         rt.WithDefaults(),
	}, nil
}

// Search returns the topics closest to utterance.
func (n *News) Search(ctx context.Context, utterance string) ([]domain.NewsTopic, error) {
	embedCtx, cancel := n.rt.call(ctx)
	vector, err := n.embedder.Embed(embedCtx, n.embedModel, utterance)
	cancel()
	if err != nil {
		return nil, domain.Upstream("news_embedding", err)
	}

	searchCtx, cancel := n.rt.call(ctx)
	defer cancel()
	topics, err := n.index.SearchTopics(searchCtx, vector, n.topK)
	if err != nil {
		return nil, domain.Upstream("news_search", err)
	}
	return topics, nil
}

// Answer searches and then asks the model to answer from the topics found.
// No topics is an EmptyResult error.
func (n *News) Answer(ctx context.Context, utterance string) (string, error) {
	topics, err := n.Search(ctx, utterance)
	if err != nil {
		return "", err
	}
	if len(topics) == 0 {
		return "", domain.NewError(domain.ErrorEmptyResult, "no_news_topics", nil)
	}
	n.rt.Logger.Debug("news topics found", zap.Int("count", len(topics)), zap.String("top_title", topics[0].Title))

	system, user, err := n.prompts.News(topics, utterance)
	if err != nil {
		return "", err
	}
	out, err := n.rt.complete(ctx, n.llm, domain.Completion{
		Model:    n.model,
		System:   system,
		Messages: []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: user}},
	}, "news_completion")
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", domain.Malformed("news_empty_answer", nil)
	}
	return out, nil
}
