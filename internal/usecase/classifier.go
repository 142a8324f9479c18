package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"jarvis-webhook/internal/capability"
	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/prompts"
)

// newsKeywords route straight to News without asking the model.
var newsKeywords = []string{"뉴스", "news"}

// Normalizer prepares an utterance for classification.
type Normalizer interface {
	Process(ctx context.Context, text string) (string, bool, error)
}

type classification struct {
	Intent string `json:"intent"`
	Params struct {
		Date        string `json:"date"`
		PhotoURL    string `json:"photo_url"`
		Description string `json:"description"`
		PhotoDate   string `json:"photo_date"`
	} `json:"params"`
}

// Classifier maps an utterance onto exactly one intent and its parameters.
// It never fails: any upstream or parsing problem degrades to Chat.
type Classifier struct {
	llm     capability.LLM
	model   string
	prompts *prompts.Set
	norm    Normalizer
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

type ClassifierConfig struct {
	Model    string
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
}

func NewClassifier(llm capability.LLM, p *prompts.Set, norm Normalizer, cfg ClassifierConfig, logger *zap.Logger) (*Classifier, error) {
	if llm == nil {
		return nil, errors.New("usecase: classifier llm must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: prompts must not be nil")
	}
	if norm == nil {
		return nil, errors.New("usecase: normalizer must not be nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("usecase: classifier model must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = capability.DefaultCallTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Location != nil {
		base, loc := now, cfg.Location
		now = func() time.Time { return base().In(loc) }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		llm:     llm,
		model:   cfg.Model,
		prompts: p,
		norm:    norm,
		timeout: cfg.Timeout,
		now:     now,
		logger:  logger,
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, u domain.Utterance) (domain.Intent, domain.ParamSet) {
	logger := c.logger.With(zap.String("user_id", u.UserID))
	if containsAny(u.Text, newsKeywords) {
		logger.Debug("news keyword matched")
		return domain.IntentNews, domain.NewsParams{}
	}

	text, translated, err := c.norm.Process(ctx, u.Text)
	if err != nil {
		logger.Warn("preprocess failed, classifying original text", zap.Error(err))
		text = u.Text
	}

	now := c.now()
	raw, err := c.ask(ctx, text, now)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok {
			logger.Warn("classification upstream error", zap.Int("status", status), zap.Error(err))
		} else {
			logger.Warn("classification failed", zap.Error(err))
		}
		return domain.IntentChat, domain.ChatParams{}
	}

	out, err := parseClassification(raw)
	if err != nil {
		logger.Warn("malformed classification", zap.Error(domain.Malformed("classification", err)))
		return domain.IntentChat, domain.ChatParams{}
	}

	params := buildParams(out, u.Text, now)
	logger.Debug("classified",
		zap.String("intent", string(params.Intent())),
		zap.Bool("translated", translated))
	return params.Intent(), params
}

func (c *Classifier) ask(ctx context.Context, text string, now time.Time) (string, error) {
	system, err := c.prompts.Classifier(now)
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.llm.Complete(callCtx, domain.Completion{
		Model:    c.model,
		System:   system,
		Messages: []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: text}},
		Schema:   c.prompts.ClassifierSchema(),
	})
}

// parseClassification decodes the strict object first and falls back to the
// outermost braces when the model wrapped it in prose.
func parseClassification(raw string) (classification, error) {
	raw = strings.TrimSpace(raw)
	out, err := decodeStrict(raw)
	if err == nil {
		return out, nil
	}
	first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return classification{}, err
	}
	out, innerErr := decodeStrict(raw[first : last+1])
	if innerErr != nil {
		return classification{}, err
	}
	return out, nil
}

func decodeStrict(raw string) (classification, error) {
	var out classification
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return classification{}, fmt.Errorf("usecase: decode classification: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return classification{}, errors.New("usecase: decode classification: multiple JSON values")
		}
		return classification{}, fmt.Errorf("usecase: decode classification trailing data: %w", err)
	}
	if strings.TrimSpace(out.Intent) == "" {
		return classification{}, errors.New("usecase: classification missing intent")
	}
	return out, nil
}

// buildParams validates the model's parameters for the chosen intent.
func buildParams(c classification, utterance string, now time.Time) domain.ParamSet {
	label := strings.ToLower(strings.TrimSpace(c.Intent))
	intent, ok := domain.ParseIntent(label)
	if !ok {
		return domain.UnknownParams{Label: c.Intent}
	}

	switch intent {
	case domain.IntentSchedule:
		return domain.ScheduleParams{Date: resolveDate(c.Params.Date, now)}
	case domain.IntentPhoto:
		return photoParams(c, utterance, now)
	case domain.IntentNews:
		return domain.NewsParams{}
	default:
		return domain.ChatParams{}
	}
}

func photoParams(c classification, utterance string, now time.Time) domain.PhotoParams {
	p := domain.PhotoParams{
		Description: strings.TrimSpace(c.Params.Description),
		PhotoDate:   resolveDate(c.Params.PhotoDate, now),
	}
	if validURL(c.Params.PhotoURL) {
		p.PhotoURL = strings.TrimSpace(c.Params.PhotoURL)
	}
	if p.PhotoURL == "" {
		p.PhotoURL = extractURL(utterance)
	}
	if p.PhotoURL != "" {
		// An attached image is always an upload.
		p.PhotoDate = ""
		if p.Description == "" {
			p.Description = capability.DefaultPhotoDescription
		}
		return p
	}
	if p.PhotoDate == "" {
		p.PhotoDate = relativeDateIn(utterance, now)
	}
	return p
}

func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
