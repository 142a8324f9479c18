// Package prompts holds the instruction texts sent to the language model.
package prompts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"jarvis-webhook/internal/domain"
)

//go:embed prompts.yaml
var defaultFile []byte

var koreanWeekdays = [...]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

type file struct {
	Classifier struct {
		System string `yaml:"system"`
		Schema string `yaml:"schema"`
	} `yaml:"classifier"`
	Chat struct {
		System string `yaml:"system"`
	} `yaml:"chat"`
	Schedule struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
	} `yaml:"schedule"`
	News struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
	} `yaml:"news"`
	Translator struct {
		System string `yaml:"system"`
	} `yaml:"translator"`
}

// Set is a parsed prompt file.
type Set struct {
	classifier   *template.Template
	schema       json.RawMessage
	chat         string
	scheduleSys  string
	scheduleUser *template.Template
	newsSys      string
	newsUser     *template.Template
	translator   string
}

// Default returns the prompts compiled into the binary.
func Default() (*Set, error) {
	return Parse(defaultFile)
}

// Parse reads a prompt file. Every section is required.
func Parse(raw []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("prompts: decode: %w", err)
	}

	required := map[string]string{
		"classifier.system": f.Classifier.System,
		"classifier.schema": f.Classifier.Schema,
		"chat.system":       f.Chat.System,
		"schedule.system":   f.Schedule.System,
		"schedule.user":     f.Schedule.User,
		"news.system":       f.News.System,
		"news.user":         f.News.User,
		"translator.system": f.Translator.System,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("prompts: %s must not be empty", key)
		}
	}

	schema := json.RawMessage(strings.TrimSpace(f.Classifier.Schema))
	if !json.Valid(schema) {
		return nil, errors.New("prompts: classifier.schema is not valid JSON")
	}

	s := &Set{
		schema:      schema,
		chat:        strings.TrimSpace(f.Chat.System),
		scheduleSys: strings.TrimSpace(f.Schedule.System),
		newsSys:     strings.TrimSpace(f.News.System),
		translator:  strings.TrimSpace(f.Translator.System),
	}
	var err error
	if s.classifier, err = template.New("classifier").Option("missingkey=error").Parse(f.Classifier.System); err != nil {
		return nil, fmt.Errorf("prompts: classifier.system: %w", err)
	}
	if s.scheduleUser, err = template.New("schedule").Option("missingkey=error").Parse(f.Schedule.User); err != nil {
		return nil, fmt.Errorf("prompts: schedule.user: %w", err)
	}
	if s.newsUser, err = template.New("news").Option("missingkey=error").Parse(f.News.User); err != nil {
		return nil, fmt.Errorf("prompts: news.user: %w", err)
	}
	return s, nil
}

type dated struct {
	Today     string
	Weekday   string
	Utterance string
	Topics    []domain.NewsTopic
}

func newDated(now time.Time) dated {
	return dated{Today: now.Format("2006-01-02"), Weekday: KoreanWeekday(now)}
}

// KoreanWeekday names the day of the week of t in Korean.
func KoreanWeekday(t time.Time) string {
	return koreanWeekdays[t.Weekday()]
}

// Classifier renders the intent classifier instructions for the given day.
func (s *Set) Classifier(now time.Time) (string, error) {
	return render(s.classifier, newDated(now))
}

// ClassifierSchema is the structured output shape of the classifier.
func (s *Set) ClassifierSchema() *domain.JSONSchema {
	return &domain.JSONSchema{Name: "intent_classification", Schema: s.schema}
}

func (s *Set) Chat() string { return s.chat }

func (s *Set) Translator() string { return s.translator }

// Schedule returns the system and user messages of the schedule interpreter.
func (s *Set) Schedule(now time.Time, utterance string) (string, string, error) {
	d := newDated(now)
	d.Utterance = utterance
	user, err := render(s.scheduleUser, d)
	if err != nil {
		return "", "", err
	}
	return s.scheduleSys, user, nil
}

// News returns the system and user messages that ground an answer in topics.
func (s *Set) News(topics []domain.NewsTopic, utterance string) (string, string, error) {
	user, err := render(s.newsUser, dated{Utterance: utterance, Topics: topics})
	if err != nil {
		return "", "", err
	}
	return s.newsSys, user, nil
}

func render(t *template.Template, data dated) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("prompts: render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
