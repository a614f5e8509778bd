package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Language is a target language offered to clients.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var SupportedLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish (Español)"},
	{Code: "fr", Name: "French (Français)"},
	{Code: "de", Name: "German (Deutsch)"},
	{Code: "it", Name: "Italian (Italiano)"},
	{Code: "pt", Name: "Portuguese (Português)"},
	{Code: "ru", Name: "Russian (Русский)"},
	{Code: "ja", Name: "Japanese (日本語)"},
	{Code: "ko", Name: "Korean (한국어)"},
	{Code: "zh", Name: "Chinese (中文)"},
	{Code: "ar", Name: "Arabic (العربية)"},
	{Code: "hi", Name: "Hindi (हिन्दी)"},
	{Code: "bn", Name: "Bengali (বাংলা)"},
	{Code: "ur", Name: "Urdu (اردو)"},
	{Code: "tr", Name: "Turkish (Türkçe)"},
	{Code: "vi", Name: "Vietnamese (Tiếng Việt)"},
	{Code: "th", Name: "Thai (ไทย)"},
	{Code: "nl", Name: "Dutch (Nederlands)"},
	{Code: "pl", Name: "Polish (Polski)"},
	{Code: "id", Name: "Indonesian (Bahasa Indonesia)"},
}

func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// TranslationCache stores translated strings keyed by text and language.
// Get reports a miss as ("", false, nil).
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

const defaultMemoryCacheEntries = 10000

// MemoryCache is a process-local TranslationCache bounded by entry count.
// The least recently used entry is evicted first, and entries older than
// the ttl are dropped.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryCache keeps at most maxEntries translations; values <= 0 use the
// default. A ttl <= 0 disables expiry.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryCacheEntries
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](maxEntries, nil, ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string) error {
	m.lru.Add(key, value)
	return nil
}

func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// Close drops every entry.
func (m *MemoryCache) Close() {
	m.lru.Purge()
}

// RedisCache shares translations between replicas.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "translation:", ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// TranslationResult is returned to clients.
type TranslationResult struct {
	Text       string `json:"text"`
	Translated string `json:"translated"`
	Lang       string `json:"lang"`
	Cached     bool   `json:"cached"`
}

// Translator translates short UI and complaint strings through the MyMemory
// API. Failures fall back to the input text.
type Translator struct {
	cache      TranslationCache
	httpClient *http.Client
	endpoint   string
	sourceLang string
}

func NewTranslator(cfg *config.TranslationConfig, cache TranslationCache) *Translator {
	t := &Translator{
		cache:      cache,
		endpoint:   "https://api.mymemory.translated.net/get",
		sourceLang: "en",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if cfg != nil {
		if cfg.Endpoint != "" {
			t.endpoint = cfg.Endpoint
		}
		if cfg.SourceLang != "" {
			t.sourceLang = cfg.SourceLang
		}
		if cfg.TimeoutSeconds > 0 {
			t.httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
	}
	if t.cache == nil {
		if cfg != nil {
			t.cache = NewMemoryCache(cfg.CacheMaxEntries, time.Duration(cfg.CacheTTLHours)*time.Hour)
		} else {
			t.cache = NewMemoryCache(0, 0)
		}
	}
	return t
}

func cacheKey(text, lang string) string {
	return text + "_" + lang
}

func (t *Translator) Translate(ctx context.Context, text, lang string) *TranslationResult {
	result := &TranslationResult{Text: text, Translated: text, Lang: lang}
	if text == "" || lang == "" || lang == t.sourceLang {
		return result
	}

	key := cacheKey(text, lang)
	if v, ok, err := t.cache.Get(ctx, key); err != nil {
		logger.Warn().Err(err).Msg("[Translation] cache read failed")
	} else if ok {
		result.Translated = v
		result.Cached = true
		return result
	}

	translated, err := t.fetch(ctx, text, lang)
	if err != nil {
		logger.Warn().Err(err).Str("lang", lang).Msg("[Translation] upstream failed, returning original text")
		return result
	}

	if err := t.cache.Set(ctx, key, translated); err != nil {
		logger.Warn().Err(err).Msg("[Translation] cache write failed")
	}
	result.Translated = translated
	return result
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus json.RawMessage `json:"responseStatus"`
}

func (t *Translator) fetch(ctx context.Context, text, lang string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", t.sourceLang+"|"+lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation API returned status %d", resp.StatusCode)
	}

	var body myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	// responseStatus is sometimes a number and sometimes a string
	if status := strings.Trim(string(body.ResponseStatus), `"`); status != "200" {
		return "", fmt.Errorf("translation API responseStatus %s", status)
	}
	if body.ResponseData.TranslatedText == "" {
		return "", errors.New("empty translation")
	}
	return body.ResponseData.TranslatedText, nil
}
