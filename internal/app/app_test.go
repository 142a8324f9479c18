package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"jarvis-webhook/internal/config"
	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/integrations/openai"
	"jarvis-webhook/internal/integrations/paramstore"
	"jarvis-webhook/internal/memory"
)

// The consumers declare their own token interfaces; the SSM client serves both.
var (
	_ tokenResolver      = (*paramstore.Client)(nil)
	_ openai.TokenSource = (*paramstore.Client)(nil)
	_ openAIKeyResolver  = (*openai.Client)(nil)
)

type fakeTokens map[string]string

func (f fakeTokens) GetToken(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

type fakeKey struct {
	key string
	err error
}

func (f fakeKey) ResolveAPIKey(context.Context) (string, error) { return f.key, f.err }

func TestResolveSecrets(t *testing.T) {
	tokens := fakeTokens{translationTokenParam: "tr", pineconeKeyParam: "pc"}

	got, err := ResolveSecrets(context.Background(), tokens, fakeKey{key: "sk"})
	require.NoError(t, err)
	require.Equal(t, Secrets{OpenAI: "sk", Translation: "tr", Pinecone: "pc"}, got)

	_, err = ResolveSecrets(context.Background(), tokens, fakeKey{err: errors.New("boom")})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.ErrorConfiguration))

	_, err = ResolveSecrets(context.Background(), fakeTokens{translationTokenParam: "tr"}, fakeKey{key: "sk"})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.ErrorConfiguration))
	require.Contains(t, err.Error(), "pinecone_token")
}

func TestNewMemory_SelectsBackend(t *testing.T) {
	store, closeFn, err := NewMemory(config.Config{MemoryWindow: 5}, nil)
	require.NoError(t, err)
	require.IsType(t, &memory.Window{}, store)
	require.NoError(t, closeFn())

	store, closeFn, err = NewMemory(config.Config{RedisAddr: "127.0.0.1:0", MemoryWindow: 5, MemoryTTL: time.Hour}, nil)
	require.NoError(t, err)
	require.IsType(t, &memory.RedisStore{}, store)
	require.NoError(t, closeFn())
}

func TestWindowSize_CoversFetchedHistory(t *testing.T) {
	require.Equal(t, 100, windowSize(config.Config{MemoryWindow: 20, HistoryFetchLimit: 100}))
	require.Equal(t, 150, windowSize(config.Config{MemoryWindow: 150, HistoryFetchLimit: 100}))
}

// scriptLLM answers the classifier call with a fixed label and every other
// call with a fixed chat answer.
type scriptLLM struct {
	label  string
	answer string

	mu    sync.Mutex
	calls []domain.Completion
}

func (s *scriptLLM) Complete(_ context.Context, in domain.Completion) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, in)
	s.mu.Unlock()
	if in.Schema != nil {
		return `{"intent":"` + s.label + `","params":{"date":"","photo_url":"","description":"","photo_date":""}}`, nil
	}
	return s.answer, nil
}

type noEmbed struct{}

func (noEmbed) Embed(context.Context, string, string) ([]float32, error) { return []float32{1}, nil }

type noTopics struct{}

func (noTopics) SearchTopics(context.Context, []float32, int) ([]domain.NewsTopic, error) {
	return nil, nil
}

type noRecords struct{}

func (noRecords) PutPhoto(context.Context, domain.PhotoRecord) error { return nil }
func (noRecords) FindPhotosByDate(context.Context, string, string) ([]domain.PhotoRecord, error) {
	return nil, nil
}
func (noRecords) PutSchedule(context.Context, domain.ScheduleEntry) error { return nil }
func (noRecords) FindSchedules(context.Context, string, string) ([]domain.ScheduleEntry, error) {
	return nil, nil
}

type memHistory struct {
	mu    sync.Mutex
	turns []domain.ConversationTurn
}

func (m *memHistory) GetHistory(context.Context, string, int) ([]domain.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ConversationTurn(nil), m.turns...), nil
}

func (m *memHistory) SaveTurns(_ context.Context, _ string, turns ...domain.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	return nil
}

type echoTranslator struct{}

func (echoTranslator) Translate(_ context.Context, text string) (string, error) { return text, nil }

func testConfig() config.Config {
	loc, _ := time.LoadLocation("Asia/Seoul")
	return config.Config{
		ChatModel:         "chat-model",
		ClassifierModel:   "classifier-model",
		ScheduleModel:     "schedule-model",
		NewsModel:         "news-model",
		EmbeddingModel:    "embed-model",
		KoreanThreshold:   0.5,
		NewsTopK:          2,
		MemoryWindow:      20,
		HistoryFetchLimit: 100,
		CallTimeout:       time.Second,
		Location:          loc,
	}
}

func TestWire_EndToEnd(t *testing.T) {
	llm := &scriptLLM{label: "chat", answer: "안녕하세요, 무엇을 도와드릴까요?"}
	history := &memHistory{}
	h, err := Wire(testConfig(), Deps{
		LLM:        llm,
		Embedder:   noEmbed{},
		Topics:     noTopics{},
		Records:    noRecords{},
		History:    history,
		Memory:     memory.NewWindow(20),
		Translator: echoTranslator{},
	}, nil)
	require.NoError(t, err)

	body := `{"userRequest":{"user":{"id":"u-1"},"utterance":"안녕 자비스"}}`
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{Body: body})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &env))
	want := domain.Envelope{
		Version: domain.EnvelopeVersion,
		Template: domain.Template{Outputs: []domain.OutputBlock{
			{SimpleText: &domain.SimpleText{Text: "안녕하세요, 무엇을 도와드릴까요?"}},
		}},
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Fatalf("envelope mismatch (-want +got):\n%s", diff)
	}

	saved, err := history.GetHistory(context.Background(), "u-1", 10)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	require.Equal(t, domain.RoleUser, saved[0].Role)
	require.Equal(t, "안녕 자비스", saved[0].Text)
	require.Equal(t, domain.RoleAssistant, saved[1].Role)

	llm.mu.Lock()
	defer llm.mu.Unlock()
	require.Len(t, llm.calls, 2)
	require.Equal(t, "classifier-model", llm.calls[0].Model)
	require.Equal(t, "chat-model", llm.calls[1].Model)
}

func TestWire_RequiresTranslatorToken(t *testing.T) {
	_, err := Wire(testConfig(), Deps{
		LLM:      &scriptLLM{},
		Embedder: noEmbed{},
		Topics:   noTopics{},
		Records:  noRecords{},
		History:  &memHistory{},
		Memory:   memory.NewWindow(20),
	}, nil)
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.ErrorConfiguration))
}

func TestWire_TranslatorUsesItsOwnEndpoint(t *testing.T) {
	var translated []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer translation-token", r.Header.Get("Authorization"))
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "local-mt", req.Model)
		mu.Lock()
		translated = append(translated, req.Messages[len(req.Messages)-1].Content)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"t1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"What are you doing?"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.TranslationBaseURL = srv.URL + "/v1"
	cfg.TranslationModel = "local-mt"
	llm := &scriptLLM{label: "chat", answer: "쉬고 있어요."}
	h, err := Wire(cfg, Deps{
		LLM:        llm,
		Embedder:   noEmbed{},
		Topics:     noTopics{},
		Records:    noRecords{},
		History:    &memHistory{},
		Memory:     memory.NewWindow(20),
		TransToken: "translation-token",
	}, nil)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		Body: `{"userRequest":{"user":{"id":"u-2"},"utterance":"뭐하고 있어"}}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mu.Lock()
	require.Equal(t, []string{"뭐하고 있어"}, translated)
	mu.Unlock()

	llm.mu.Lock()
	defer llm.mu.Unlock()
	require.Len(t, llm.calls, 2)
	require.Equal(t, "What are you doing?", llm.calls[0].Messages[0].Content)
}
