// Package preprocess normalizes Korean input to English before intent
// classification.
package preprocess

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
)

const DefaultThreshold = 0.5

// Translator turns secondary-language text into the working language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type Preprocessor struct {
	translator Translator
	threshold  float64
	logger     *zap.Logger
}

func New(t Translator, threshold float64, logger *zap.Logger) (*Preprocessor, error) {
	if t == nil {
		return nil, errors.New("preprocess: translator must not be nil")
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{translator: t, threshold: threshold, logger: logger}, nil
}

// Process returns the text to classify and whether it was translated. When
// translation fails the original text comes back together with a recoverable
// upstream error; callers keep going with it.
func (p *Preprocessor) Process(ctx context.Context, text string) (string, bool, error) {
	ratio := HangulRatio(text)
	if ratio <= p.threshold {
		return text, false, nil
	}
	translated, err := p.translator.Translate(ctx, text)
	if err != nil {
		return text, false, domain.Upstream("translation_failed", err)
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return text, false, domain.Malformed("translation_empty", nil)
	}
	p.logger.Debug("translated utterance", zap.Float64("hangul_ratio", ratio))
	return translated, true, nil
}

// HangulRatio is the share of Hangul syllables and compatibility jamo among
// the non-whitespace characters of text. Blank text has ratio 0.
func HangulRatio(text string) float64 {
	var hangul, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isHangul(r) {
			hangul++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hangul) / float64(total)
}

func isHangul(r rune) bool {
	switch {
	case r >= '가' && r <= '힣':
		return true
	case r >= 'ㄱ' && r <= 'ㅎ':
		return true
	case r >= 'ㅏ' && r <= 'ㅣ':
		return true
	}
	return false
}
