// Package app builds the webhook object graph from configuration. Every
// external client is constructed and every secret resolved here, once per
// process.
package app

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jarvis-webhook/handler"
	"jarvis-webhook/internal/capability"
	"jarvis-webhook/internal/config"
	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/integrations/openai"
	"jarvis-webhook/internal/integrations/paramstore"
	"jarvis-webhook/internal/integrations/pinecone"
	"jarvis-webhook/internal/integrations/translate"
	"jarvis-webhook/internal/memory"
	"jarvis-webhook/internal/preprocess"
	"jarvis-webhook/internal/prompts"
	"jarvis-webhook/internal/repository"
	"jarvis-webhook/internal/usecase"
)

// SSM parameter names, relative to PARAM_PREFIX.
const (
	translationTokenParam = "translation-token"
	pineconeKeyParam      = "pinecone-api-key"
)

// App is the assembled webhook.
type App struct {
	Handler *handler.Handler
	closers []func() error
}

// Close releases long-lived connections.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Secrets are the tokens read from the parameter store at startup.
type Secrets struct {
	OpenAI      string
	Translation string
	Pinecone    string
}

type tokenResolver interface {
	GetToken(ctx context.Context, name string) (string, error)
}

type openAIKeyResolver interface {
	ResolveAPIKey(ctx context.Context) (string, error)
}

// ResolveSecrets fetches every token eagerly so a broken deployment fails at
// cold start instead of on the first message.
func ResolveSecrets(ctx context.Context, tokens tokenResolver, llm openAIKeyResolver) (Secrets, error) {
	var s Secrets
	var err error
	if s.OpenAI, err = llm.ResolveAPIKey(ctx); err != nil {
		return Secrets{}, configErr("openai_token", err)
	}
	if s.Translation, err = tokens.GetToken(ctx, translationTokenParam); err != nil {
		return Secrets{}, configErr("translation_token", err)
	}
	if s.Pinecone, err = tokens.GetToken(ctx, pineconeKeyParam); err != nil {
		return Secrets{}, configErr("pinecone_token", err)
	}
	return s, nil
}

func configErr(reason string, err error) error {
	return domain.NewError(domain.ErrorConfiguration, reason, fmt.Errorf("app: %s: %w", reason, err))
}

// windowSize never drops below the fetched history, so every fetched turn
// reaches the chat model.
func windowSize(cfg config.Config) int {
	return max(cfg.MemoryWindow, cfg.HistoryFetchLimit)
}

// NewMemory picks the shared Redis window when an address is configured and
// the in-process window otherwise. The returned closer is never nil.
func NewMemory(cfg config.Config, logger *zap.Logger) (memory.Store, func() error, error) {
	size := windowSize(cfg)
	if cfg.RedisAddr == "" {
		return memory.NewWindow(size, memory.WithIdleTimeout(cfg.MemoryTTL)), func() error { return nil }, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store, err := memory.NewRedisStore(rdb, size, cfg.MemoryTTL, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, rdb.Close, nil
}

// Build loads AWS credentials and wires the webhook.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, configErr("aws_config", err)
	}

	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamPrefix)
	if err != nil {
		return nil, configErr("paramstore", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, repository.WithLocation(cfg.Location))
	if err != nil {
		return nil, configErr("repository", err)
	}

	var llmOpts []openai.Option
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llm, err := openai.NewClient(params, llmOpts...)
	if err != nil {
		return nil, configErr("openai", err)
	}

	secrets, err := ResolveSecrets(ctx, params, llm)
	if err != nil {
		return nil, err
	}
	index, err := pinecone.Open(secrets.Pinecone, cfg.PineconeIndexHost, cfg.PineconeNamespace)
	if err != nil {
		return nil, configErr("pinecone", err)
	}

	mem, closeMem, err := NewMemory(cfg, logger)
	if err != nil {
		return nil, configErr("memory", err)
	}

	h, err := Wire(cfg, Deps{
		LLM:        llm,
		Embedder:   llm,
		Topics:     index,
		Records:    store,
		History:    store,
		Memory:     mem,
		TransToken: secrets.Translation,
	}, logger)
	if err != nil {
		_ = closeMem()
		return nil, err
	}
	return &App{Handler: h, closers: []func() error{closeMem}}, nil
}

// Records stores photos and schedules.
type Records interface {
	capability.PhotoStore
	capability.ScheduleStore
}

// Deps are the external collaborators Wire composes. Translator may be left
// nil, in which case one is built from TransToken.
type Deps struct {
	LLM        capability.LLM
	Embedder   capability.Embedder
	Topics     capability.TopicSearcher
	Records    Records
	History    usecase.HistoryStore
	Memory     memory.Store
	Translator preprocess.Translator
	TransToken string
}

// Wire composes capabilities, classifier, dispatcher and service behind the
// transport handler.
func Wire(cfg config.Config, deps Deps, logger *zap.Logger) (*handler.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := prompts.Default()
	if err != nil {
		return nil, configErr("prompts", err)
	}

	translator := deps.Translator
	if translator == nil {
		tr, err := translate.New(deps.TransToken, cfg.TranslationBaseURL, cfg.TranslationModel, p.Translator())
		if err != nil {
			return nil, configErr("translator", err)
		}
		translator = tr
	}
	pre, err := preprocess.New(translator, cfg.KoreanThreshold, logger.Named("preprocess"))
	if err != nil {
		return nil, configErr("preprocess", err)
	}

	rt := capability.Runtime{Timeout: cfg.CallTimeout, Logger: logger}
	if cfg.Location != nil {
		loc := cfg.Location
		rt.Now = func() time.Time { return time.Now().In(loc) }
	}

	chat, err := capability.NewChat(deps.LLM, cfg.ChatModel, p.Chat(), rt)
	if err != nil {
		return nil, configErr("chat", err)
	}
	schedule, err := capability.NewSchedule(deps.LLM, cfg.ScheduleModel, p, deps.Records, rt)
	if err != nil {
		return nil, configErr("schedule", err)
	}
	photo, err := capability.NewPhoto(deps.Records, rt)
	if err != nil {
		return nil, configErr("photo", err)
	}
	news, err := capability.NewNews(deps.Embedder, deps.Topics, deps.LLM, p, capability.NewsConfig{
		EmbeddingModel: cfg.EmbeddingModel,
		Model:          cfg.NewsModel,
		TopK:           cfg.NewsTopK,
	}, rt)
	if err != nil {
		return nil, configErr("news", err)
	}

	classifier, err := usecase.NewClassifier(deps.LLM, p, pre, usecase.ClassifierConfig{
		Model:    cfg.ClassifierModel,
		Timeout:  cfg.CallTimeout,
		Location: cfg.Location,
	}, logger.Named("classifier"))
	if err != nil {
		return nil, configErr("classifier", err)
	}

	dispatcher, err := usecase.NewDispatcher(classifier, usecase.Capabilities{
		Chat:     chat,
		Schedule: schedule,
		Photo:    photo,
		News:     news,
	}, deps.Memory, rt)
	if err != nil {
		return nil, configErr("dispatcher", err)
	}
	svc, err := usecase.NewService(dispatcher, deps.History, cfg.HistoryFetchLimit, rt)
	if err != nil {
		return nil, configErr("service", err)
	}
	return handler.NewHandler(svc, logger.Named("handler"))
}
