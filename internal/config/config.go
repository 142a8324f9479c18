// Package config reads the webhook settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Lambda images ship without a zoneinfo database

	"github.com/joho/godotenv"

	"jarvis-webhook/internal/domain"
)

type Config struct {
	StateTable  string
	ParamPrefix string

	OpenAIBaseURL   string
	ChatModel       string
	ClassifierModel string
	ScheduleModel   string
	NewsModel       string
	EmbeddingModel  string

	TranslationBaseURL string
	TranslationModel   string
	KoreanThreshold    float64

	PineconeIndexHost string
	PineconeNamespace string
	NewsTopK          int

	MemoryWindow      int
	HistoryFetchLimit int
	CallTimeout       time.Duration
	Location          *time.Location

	RedisAddr     string
	RedisPassword string
	MemoryTTL     time.Duration

	HTTPAddr string
	LogLevel string
}

// Load reads an optional .env file and then the process environment.
// Missing required values and unparsable numbers are configuration errors.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

type reader struct {
	getenv  func(string) string
	missing []string
	invalid []string
}

func (r *reader) required(key string) string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) positiveInt(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.invalid = append(r.invalid, key)
		return def
	}
	return n
}

func (r *reader) ratio(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f >= 1 {
		r.invalid = append(r.invalid, key)
		return def
	}
	return f
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.invalid = append(r.invalid, key)
		return def
	}
	return d
}

func (r *reader) location(key, def string) *time.Location {
	name := r.str(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return time.UTC
	}
	return loc
}

func fromEnv(getenv func(string) string) (Config, error) {
	r := &reader{getenv: getenv}
	cfg := Config{
		StateTable:  r.required("STATE_TABLE"),
		ParamPrefix: r.required("PARAM_PREFIX"),

		OpenAIBaseURL:   r.str("OPENAI_BASE_URL", ""),
		ChatModel:       r.str("CHAT_MODEL", "gpt-4o-mini"),
		ClassifierModel: r.str("CLASSIFIER_MODEL", "gpt-4o-mini"),
		ScheduleModel:   r.str("SCHEDULE_MODEL", "gpt-4o"),
		NewsModel:       r.str("NEWS_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  r.str("EMBEDDING_MODEL", "text-embedding-3-large"),

		TranslationBaseURL: r.str("TRANSLATION_BASE_URL", ""),
		TranslationModel:   r.str("TRANSLATION_MODEL", "gpt-4o-mini"),
		KoreanThreshold:    r.ratio("KOREAN_DETECTION_THRESHOLD", 0.5),

		PineconeIndexHost: r.required("PINECONE_INDEX_HOST"),
		PineconeNamespace: r.str("PINECONE_NAMESPACE", ""),
		NewsTopK:          r.positiveInt("NEWS_TOP_K", 2),

		MemoryWindow:      r.positiveInt("MEMORY_WINDOW", 100),
		HistoryFetchLimit: r.positiveInt("HISTORY_FETCH_LIMIT", 100),
		CallTimeout:       r.duration("CALL_TIMEOUT", 10*time.Second),
		Location:          r.location("TIMEZONE", "Asia/Seoul"),

		RedisAddr:     r.str("REDIS_ADDR", ""),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		MemoryTTL:     r.duration("MEMORY_TTL", 24*time.Hour),

		HTTPAddr: r.str("HTTP_ADDR", ":8080"),
		LogLevel: r.str("LOG_LEVEL", "info"),
	}

	if len(r.missing) > 0 {
		return Config{}, domain.NewError(domain.ErrorConfiguration, "missing_env",
			fmt.Errorf("config: required environment variables not set: %s", strings.Join(r.missing, ", ")))
	}
	if len(r.invalid) > 0 {
		return Config{}, domain.NewError(domain.ErrorConfiguration, "invalid_env",
			fmt.Errorf("config: invalid values for: %s", strings.Join(r.invalid, ", ")))
	}
	return cfg, nil
}
