package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"literary-rag/internal/chunker"
	"literary-rag/internal/models"
)

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Rerank      RerankConfig      `yaml:"rerank"`
	LLM         GenerationConfig  `yaml:"llm"`
	Memory      MemoryConfig      `yaml:"memory"`
	Server      ServerConfig      `yaml:"server"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	JSON       bool   `yaml:"json"`
}

type CorpusConfig struct {
	Root               string            `yaml:"root"`
	DefaultTheme       string            `yaml:"default_theme"`
	TypeCollections    map[string]string `yaml:"type_collections"`
	ChapterCollections []string          `yaml:"chapter_collections"`
	ChapterMarkers     []string          `yaml:"chapter_markers"`
	IntroTitle         string            `yaml:"intro_title"`
}

type ChunkingConfig struct {
	// Tokenizer is a tiktoken encoding name, or "words".
	Tokenizer string                     `yaml:"tokenizer"`
	Profiles  map[string]chunker.Profile `yaml:"profiles"`
}

// LLMConfig describes one model endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
	KeyEnv   string `yaml:"key_env"`
}

type EmbeddingConfig struct {
	LLMConfig `yaml:",inline"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	// Driver is "pgdriver" or "postgres" (lib/pq).
	Driver     string `yaml:"driver"`
	Dimensions int    `yaml:"dimensions"`
	Debug      bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	// Backend is "chromem" or "pgvector".
	Backend          string         `yaml:"backend"`
	Path             string         `yaml:"path"`
	InMemory         bool           `yaml:"in_memory"`
	Compress         bool           `yaml:"compress"`
	ExportFile       string         `yaml:"export_file"`
	EncryptionKey    string         `yaml:"encryption_key"`
	EncryptionKeyEnv string         `yaml:"encryption_key_env"`
	Database         DatabaseConfig `yaml:"database"`
}

type RetrievalConfig struct {
	Collections    []string      `yaml:"collections"`
	K              int           `yaml:"k"`
	FetchK         int           `yaml:"fetch_k"`
	Lambda         float64       `yaml:"lambda"`
	TopN           int           `yaml:"top_n"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	RerankFallback bool          `yaml:"rerank_fallback"`
}

type RerankConfig struct {
	Disabled          bool    `yaml:"disabled"`
	LLMConfig         `yaml:",inline"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxPassageChars   int     `yaml:"max_passage_chars"`
}

type GenerationConfig struct {
	// Backend is one of "openai", "gemini", "hosted".
	Backend                   string    `yaml:"backend"`
	Temperature               float64   `yaml:"temperature"`
	MaxRetries                int       `yaml:"max_retries"`
	SystemPrompt              string    `yaml:"system_prompt"`
	ContextualizeInstructions string    `yaml:"contextualize_instructions"`
	OpenAI                    LLMConfig `yaml:"openai"`
	Gemini                    LLMConfig `yaml:"gemini"`
	Hosted                    LLMConfig `yaml:"hosted"`
}

type MemoryConfig struct {
	Window     int           `yaml:"window"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoadConfig reads the YAML file at path. A missing file yields the
// defaults. Secrets not set in the file are read from the environment,
// after loading a .env file from the working directory if there is one.
func LoadConfig(path string) (*Config, error) {
	cfg := preset()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyDefaults()
	cfg.resolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := preset()
	cfg.applyDefaults()
	return &cfg
}

// preset holds the defaults of fields where zero is a valid setting. They
// are set before decoding so an explicit 0 in the file survives.
func preset() Config {
	return Config{
		Retrieval: RetrievalConfig{Lambda: 0.5},
		LLM:       GenerationConfig{Temperature: 0.7},
		Memory:    MemoryConfig{Window: 10},
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	if c.Corpus.Root == "" {
		c.Corpus.Root = "./data"
	}
	if c.Corpus.DefaultTheme == "" {
		c.Corpus.DefaultTheme = models.DefaultTheme
	}
	if len(c.Corpus.ChapterCollections) == 0 {
		c.Corpus.ChapterCollections = []string{models.CollectionNovels}
	}
	if len(c.Corpus.ChapterMarkers) == 0 {
		c.Corpus.ChapterMarkers = []string{models.PrologueRegex, models.ChapterRegex, models.EpilogueRegex}
	}
	if c.Corpus.IntroTitle == "" {
		c.Corpus.IntroTitle = models.IntroChapterTitle
	}

	if c.Chunking.Tokenizer == "" {
		c.Chunking.Tokenizer = "cl100k_base"
	}
	if c.Chunking.Profiles == nil {
		c.Chunking.Profiles = map[string]chunker.Profile{}
	}
	for name, p := range chunker.DefaultProfiles() {
		cur, ok := c.Chunking.Profiles[name]
		if !ok {
			c.Chunking.Profiles[name] = p
			continue
		}
		if cur.MaxTokens == 0 {
			cur.MaxTokens = p.MaxTokens
			if cur.OverlapTokens == 0 {
				cur.OverlapTokens = p.OverlapTokens
			}
		}
		if len(cur.Separators) == 0 {
			cur.Separators = p.Separators
		}
		c.Chunking.Profiles[name] = cur
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = "http://localhost:11434"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.KeyEnv == "" {
		c.Embedding.KeyEnv = "OPENAI_API_KEY"
	}
	if c.Embedding.CacheTTL == 0 {
		c.Embedding.CacheTTL = 10 * time.Minute
	}

	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "chromem"
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = "./chromemdb"
	}
	if c.VectorStore.EncryptionKeyEnv == "" {
		c.VectorStore.EncryptionKeyEnv = "CHROMEM_ENCRYPTION_KEY"
	}
	db := &c.VectorStore.Database
	if db.Driver == "" {
		db.Driver = "pgdriver"
	}
	if db.Dimensions == 0 {
		db.Dimensions = 768
	}
	if db.PasswordEnv == "" {
		db.PasswordEnv = "PGPASSWORD"
	}

	r := &c.Retrieval
	if len(r.Collections) == 0 {
		r.Collections = append([]string(nil), models.DefaultCollections...)
	}
	if r.K == 0 {
		r.K = 10
	}
	if r.FetchK == 0 {
		r.FetchK = 2 * r.K
	}
	if r.TopN == 0 {
		r.TopN = 3
	}
	if r.Timeout == 0 {
		r.Timeout = 30 * time.Second
	}
	if r.RetryAttempts == 0 {
		r.RetryAttempts = 2
	}
	if r.RetryBackoff == 0 {
		r.RetryBackoff = 500 * time.Millisecond
	}

	if c.Rerank.Provider == "" {
		c.Rerank.Provider = "openai"
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = "gpt-4o-mini"
	}
	if c.Rerank.KeyEnv == "" {
		c.Rerank.KeyEnv = "OPENAI_API_KEY"
	}
	if c.Rerank.RequestsPerSecond == 0 {
		c.Rerank.RequestsPerSecond = 2
	}
	if c.Rerank.Burst == 0 {
		c.Rerank.Burst = 4
	}
	if c.Rerank.MaxPassageChars == 0 {
		c.Rerank.MaxPassageChars = 1500
	}

	g := &c.LLM
	if g.Backend == "" {
		g.Backend = "openai"
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = 2
	}
	if g.SystemPrompt == "" {
		g.SystemPrompt = models.DefaultSystemPrompt
	}
	if g.ContextualizeInstructions == "" {
		g.ContextualizeInstructions = models.DefaultContextualizeInstructions
	}
	if g.OpenAI.Model == "" {
		g.OpenAI.Model = "gpt-4o-mini"
	}
	if g.OpenAI.KeyEnv == "" {
		g.OpenAI.KeyEnv = "OPENAI_API_KEY"
	}
	if g.Gemini.Model == "" {
		g.Gemini.Model = "gemini-1.5-flash"
	}
	if g.Gemini.KeyEnv == "" {
		g.Gemini.KeyEnv = "GOOGLE_API_KEY"
	}
	if g.Hosted.KeyEnv == "" {
		g.Hosted.KeyEnv = "HF_TOKEN"
	}
	if g.Hosted.Model == "" {
		g.Hosted.Model = "tgi"
	}

	if c.Memory.SessionTTL == 0 {
		c.Memory.SessionTTL = time.Hour
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
}

func (c *Config) resolveSecrets() {
	for _, l := range []*LLMConfig{&c.Embedding.LLMConfig, &c.Rerank.LLMConfig, &c.LLM.OpenAI, &c.LLM.Gemini, &c.LLM.Hosted} {
		if l.Key == "" && l.KeyEnv != "" {
			l.Key = os.Getenv(l.KeyEnv)
		}
	}
	if c.VectorStore.EncryptionKey == "" {
		c.VectorStore.EncryptionKey = os.Getenv(c.VectorStore.EncryptionKeyEnv)
	}
	db := &c.VectorStore.Database
	if db.Password == "" {
		db.Password = os.Getenv(db.PasswordEnv)
	}
}

// Validate checks the values that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range c.Chunking.Profiles {
		if p.MaxTokens <= 0 || p.OverlapTokens < 0 || p.OverlapTokens >= p.MaxTokens {
			errs = append(errs, fmt.Errorf("chunking profile %q: need 0 <= overlap < max_tokens", name))
		}
	}
	r := c.Retrieval
	if r.FetchK < r.K {
		errs = append(errs, fmt.Errorf("retrieval: fetch_k (%d) must be >= k (%d)", r.FetchK, r.K))
	}
	if r.Lambda < 0 || r.Lambda > 1 {
		errs = append(errs, fmt.Errorf("retrieval: lambda must be in [0,1], got %v", r.Lambda))
	}
	if r.TopN <= 0 {
		errs = append(errs, errors.New("retrieval: top_n must be positive"))
	}
	if c.Memory.Window < 0 {
		errs = append(errs, errors.New("memory: window must not be negative"))
	}
	switch strings.ToLower(c.VectorStore.Backend) {
	case "chromem", "pgvector":
	default:
		errs = append(errs, fmt.Errorf("vector_store: unknown backend %q", c.VectorStore.Backend))
	}
	return errors.Join(errs...)
}
