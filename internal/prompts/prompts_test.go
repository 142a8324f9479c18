package prompts

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jarvis-webhook/internal/domain"
)

func mustDefault(t *testing.T) *Set {
	t.Helper()
	s, err := Default()
	require.NoError(t, err)
	return s
}

func TestDefault_Parses(t *testing.T) {
	s := mustDefault(t)
	require.Contains(t, s.Chat(), "Jarvis")
	require.Contains(t, s.Chat(), "Korean")
	require.NotEmpty(t, s.Translator())
}

func TestClassifier_RendersDate(t *testing.T) {
	s := mustDefault(t)
	out, err := s.Classifier(time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Contains(t, out, "Today is 2024-10-03.")
	for _, intent := range []string{"chat", "schedule", "photo", "news"} {
		require.Contains(t, out, "- "+intent+":")
	}
}

func TestClassifierSchema_IsStrictObject(t *testing.T) {
	s := mustDefault(t)
	schema := s.ClassifierSchema()
	require.Equal(t, "intent_classification", schema.Name)

	var doc struct {
		Required             []string `json:"required"`
		AdditionalProperties bool     `json:"additionalProperties"`
		Properties           struct {
			Intent struct {
				Enum []string `json:"enum"`
			} `json:"intent"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(schema.Schema, &doc))
	require.ElementsMatch(t, []string{"intent", "params"}, doc.Required)
	require.False(t, doc.AdditionalProperties)
	require.ElementsMatch(t, []string{"chat", "schedule", "photo", "news", "unknown"}, doc.Properties.Intent.Enum)
}

func TestClassifierSchema_CoversEveryIntent(t *testing.T) {
	s := mustDefault(t)
	var doc struct {
		Properties struct {
			Intent struct {
				Enum []string `json:"enum"`
			} `json:"intent"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(s.ClassifierSchema().Schema, &doc))

	reached := map[domain.Intent]bool{}
	for _, label := range doc.Properties.Intent.Enum {
		intent, _ := domain.ParseIntent(label)
		reached[intent] = true
	}
	for _, want := range []domain.Intent{
		domain.IntentChat, domain.IntentSchedule, domain.IntentPhoto, domain.IntentNews, domain.IntentUnknown,
	} {
		require.True(t, reached[want], "schema cannot produce %s", want)
	}

	system, err := s.Classifier(time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Contains(t, system, "- unknown:")
}

func TestSchedule_CarriesKoreanWeekday(t *testing.T) {
	s := mustDefault(t)
	// 2024-10-03 is a Thursday.
	sys, user, err := s.Schedule(time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC), "금요일 3시 치과")
	require.NoError(t, err)
	require.NotEmpty(t, sys)
	require.Contains(t, user, "2024-10-03 목요일")
	require.Contains(t, user, `대사: "금요일 3시 치과"`)
	require.Contains(t, user, "일정검색")
}

func TestNews_ListsTopics(t *testing.T) {
	s := mustDefault(t)
	sys, user, err := s.News([]domain.NewsTopic{
		{Title: "반도체 수출", Summary: "증가세"},
		{Title: "금리", Summary: "동결"},
	}, "경제 뉴스 알려줘")
	require.NoError(t, err)
	require.Contains(t, sys, "뉴스기사")
	require.Contains(t, user, "제목: 반도체 수출")
	require.Contains(t, user, "내용: 동결")
	require.True(t, strings.HasSuffix(user, "경제 뉴스 알려줘"))
}

func TestKoreanWeekday(t *testing.T) {
	start := time.Date(2024, 9, 29, 0, 0, 0, 0, time.UTC) // Sunday
	want := []string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}
	for i, w := range want {
		require.Equal(t, w, KoreanWeekday(start.AddDate(0, 0, i)))
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("classifier: ["))
	require.ErrorContains(t, err, "decode")

	_, err = Parse([]byte("chat:\n  system: hi\n"))
	require.ErrorContains(t, err, "must not be empty")

	bad := strings.Replace(string(defaultFile), `"type": "object",`, `"type": "object",,`, 1)
	_, err = Parse([]byte(bad))
	require.ErrorContains(t, err, "not valid JSON")

	badTmpl := strings.Replace(string(defaultFile), "{{.Utterance}}", "{{.Utterance", 1)
	_, err = Parse([]byte(badTmpl))
	require.Error(t, err)
}
