package capability

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/prompts"
)

// LookupMarker is the token the interpreter emits when the user asks about
// an existing schedule instead of adding one.
const LookupMarker = "일정검색"

var (
	reDate      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	reStoreForm = regexp.MustCompile(`^\[?\s*(.+?)\s*\]?\s+(\d{4}-\d{2}-\d{2})\s+(\d{1,2}:\d{2})$`)
)

// ScheduleAnswer is the interpreted form of the schedule model's reply.
type ScheduleAnswer struct {
	Lookup bool
	Name   string
	Date   string
	Time   string
}

// ParseScheduleAnswer reads "[name] YYYY-MM-DD HH:mm" (store) or
// "['일정검색'] YYYY-MM-DD" (lookup). fallbackDate fills a lookup without a
// date. Anything else is malformed model output.
func ParseScheduleAnswer(raw, fallbackDate string) (ScheduleAnswer, error) {
	answer := strings.Trim(strings.TrimSpace(raw), `"'`+"`")
	if answer == "" {
		return ScheduleAnswer{}, domain.Malformed("schedule_empty_answer", nil)
	}

	if strings.Contains(answer, LookupMarker) {
		date := reDate.FindString(answer)
		if date == "" {
			date = fallbackDate
		}
		if !validDate(date) {
			return ScheduleAnswer{}, domain.Malformed("schedule_lookup_date", fmt.Errorf("answer %q", raw))
		}
		return ScheduleAnswer{Lookup: true, Date: date}, nil
	}

	m := reStoreForm.FindStringSubmatch(answer)
	if m == nil {
		return ScheduleAnswer{}, domain.Malformed("schedule_answer_shape", fmt.Errorf("answer %q", raw))
	}
	name := strings.Trim(m[1], `"'[] `)
	hhmm, err := time.Parse("15:04", m[3])
	if name == "" || !validDate(m[2]) || err != nil {
		return ScheduleAnswer{}, domain.Malformed("schedule_answer_fields", fmt.Errorf("answer %q", raw))
	}
	return ScheduleAnswer{Name: name, Date: m[2], Time: hhmm.Format("15:04")}, nil
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// Schedule stores and looks up appointments described in natural language.
type Schedule struct {
	llm     LLM
	model   string
	prompts *prompts.Set
	store   ScheduleStore
	rt      Runtime
}

func NewSchedule(llm LLM, model string, p *prompts.Set, store ScheduleStore, rt Runtime) (*Schedule, error) {
	if llm == nil || p == nil || store == nil {
		return nil, errors.New("capability: schedule dependencies must not be nil")
	}
	if model == "" {
		return nil, errors.New("capability: schedule model must not be empty")
	}
	return &Schedule{llm: llm, model: model, prompts: p, store: store, rt: rt.WithDefaults()}, nil
}

// Interpret asks the model whether the utterance adds or looks up a schedule.
func (s *Schedule) Interpret(ctx context.Context, utterance, fallbackDate string) (ScheduleAnswer, string, error) {
	system, user, err := s.prompts.Schedule(s.rt.Now(), utterance)
	if err != nil {
		return ScheduleAnswer{}, "", err
	}
	raw, err := s.rt.complete(ctx, s.llm, domain.Completion{
		Model:    s.model,
		System:   system,
		Messages: []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: user}},
	}, "schedule_completion")
	if err != nil {
		return ScheduleAnswer{}, "", err
	}
	parsed, err := ParseScheduleAnswer(raw, fallbackDate)
	if err != nil {
		return ScheduleAnswer{}, "", err
	}
	return parsed, strings.TrimSpace(raw), nil
}

// Answer handles one schedule utterance end to end. A lookup with no stored
// entry reports an EmptyResult error.
func (s *Schedule) Answer(ctx context.Context, userID, utterance string, params domain.ScheduleParams) (string, error) {
	parsed, raw, err := s.Interpret(ctx, utterance, params.Date)
	if err != nil {
		return "", err
	}
	if parsed.Lookup {
		return s.Lookup(ctx, userID, parsed.Date)
	}
	if err := s.Store(ctx, userID, parsed); err != nil {
		return "", err
	}
	return "다음 일정을 저장했습니다. " + raw, nil
}

// Lookup returns the most recently stored entry for date.
func (s *Schedule) Lookup(ctx context.Context, userID, date string) (string, error) {
	callCtx, cancel := s.rt.call(ctx)
	defer cancel()
	entries, err := s.store.FindSchedules(callCtx, userID, date)
	if err != nil {
		return "", domain.Upstream("schedule_lookup", err)
	}
	if len(entries) == 0 {
		return "", domain.NewError(domain.ErrorEmptyResult, "no_schedule", nil)
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Timestamp.After(latest.Timestamp) {
			latest = e
		}
	}
	return fmt.Sprintf("%s %s 일정은 %s입니다.", latest.Date, latest.Time, latest.Name), nil
}

func (s *Schedule) Store(ctx context.Context, userID string, a ScheduleAnswer) error {
	callCtx, cancel := s.rt.call(ctx)
	defer cancel()
	err := s.store.PutSchedule(callCtx, domain.ScheduleEntry{
		UserID:    userID,
		Name:      a.Name,
		Date:      a.Date,
		Time:      a.Time,
		Timestamp: s.rt.Now(),
	})
	if err != nil {
		return domain.Upstream("schedule_store", err)
	}
	s.rt.Logger.Debug("schedule stored", zap.String("user_id", userID), zap.String("date", a.Date))
	return nil
}
