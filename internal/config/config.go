package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	Environment string
	LogLevel    string
	DatabaseURL string
	UploadDir   string
	MaxUploadMB int

	QueueDriver  string
	NatsURL      string
	JobWorkers   int
	JobQueueSize int
	JobTimeout   time.Duration

	WhisperURL        string
	WhisperModel      string
	TranscribeWorkers int
	TranscribeTimeout time.Duration
	SegmentDuration   time.Duration
	FFmpegPath        string

	OllamaAPIURL     string
	OllamaEmbedURL   string
	OllamaLLMModel   string
	OllamaEmbedModel string
	LLMTimeout       time.Duration
	EmbedTimeout     time.Duration
	RetryMaxElapsed  time.Duration

	ChunkWords   int
	ChunkOverlap int
	SearchTopK   int
	AnswerStream bool
	VectorDriver string
}

// fileConfig mirrors the optional TOML file. Zero values leave defaults alone.
type fileConfig struct {
	Port        int    `toml:"port"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`
	DatabaseURL string `toml:"database_url"`
	UploadDir   string `toml:"upload_dir"`
	MaxUploadMB int    `toml:"max_upload_mb"`

	Queue struct {
		Driver     string `toml:"driver"`
		NatsURL    string `toml:"nats_url"`
		Workers    int    `toml:"workers"`
		Size       int    `toml:"size"`
		TimeoutSec int    `toml:"job_timeout_sec"`
	} `toml:"queue"`

	Transcription struct {
		WhisperURL        string `toml:"whisper_url"`
		WhisperModel      string `toml:"whisper_model"`
		Workers           int    `toml:"workers"`
		TimeoutSec        int    `toml:"timeout_sec"`
		SegmentDurationMS int    `toml:"segment_duration_ms"`
		FFmpegPath        string `toml:"ffmpeg_path"`
	} `toml:"transcription"`

	AI struct {
		OllamaAPIURL     string `toml:"ollama_api_url"`
		OllamaEmbedURL   string `toml:"ollama_embed_url"`
		OllamaLLMModel   string `toml:"ollama_llm_model"`
		OllamaEmbedModel string `toml:"ollama_embed_model"`
		LLMTimeoutSec    int    `toml:"llm_timeout_sec"`
		EmbedTimeoutSec  int    `toml:"embed_timeout_sec"`
		RetryMaxSec      int    `toml:"retry_max_elapsed_sec"`
	} `toml:"ai"`

	Search struct {
		ChunkWords   int    `toml:"chunk_words"`
		ChunkOverlap int    `toml:"chunk_overlap"`
		TopK         int    `toml:"top_k"`
		AnswerStream *bool  `toml:"answer_stream"`
		VectorDriver string `toml:"vector_driver"`
	} `toml:"search"`
}

func defaults() *Config {
	return &Config{
		Port:              8080,
		Environment:       "local",
		LogLevel:          "info",
		UploadDir:         "uploads",
		MaxUploadMB:       1024,
		QueueDriver:       "memory",
		NatsURL:           "nats://127.0.0.1:4222",
		JobWorkers:        2,
		JobQueueSize:      64,
		JobTimeout:        time.Hour,
		WhisperURL:        "http://127.0.0.1:8178/inference",
		TranscribeWorkers: 8,
		TranscribeTimeout: 5 * time.Minute,
		SegmentDuration:   120 * time.Second,
		FFmpegPath:        "ffmpeg",
		LLMTimeout:        10 * time.Minute,
		EmbedTimeout:      time.Minute,
		RetryMaxElapsed:   30 * time.Second,
		ChunkWords:        300,
		ChunkOverlap:      50,
		SearchTopK:        3,
		VectorDriver:      "memory",
	}
}

// Load resolves configuration from defaults, an optional TOML file, a .env
// file and finally the process environment. path may be empty; in that case
// MEETINGS_CONFIG is consulted.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // loads .env when present

	cfg := defaults()

	if path == "" {
		path = os.Getenv("MEETINGS_CONFIG")
	}
	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		applyFile(cfg, &fc)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	setInt(&cfg.Port, fc.Port)
	setStr(&cfg.Environment, fc.Environment)
	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.DatabaseURL, fc.DatabaseURL)
	setStr(&cfg.UploadDir, fc.UploadDir)
	setInt(&cfg.MaxUploadMB, fc.MaxUploadMB)

	setStr(&cfg.QueueDriver, fc.Queue.Driver)
	setStr(&cfg.NatsURL, fc.Queue.NatsURL)
	setInt(&cfg.JobWorkers, fc.Queue.Workers)
	setInt(&cfg.JobQueueSize, fc.Queue.Size)
	setSeconds(&cfg.JobTimeout, fc.Queue.TimeoutSec)

	setStr(&cfg.WhisperURL, fc.Transcription.WhisperURL)
	setStr(&cfg.WhisperModel, fc.Transcription.WhisperModel)
	setInt(&cfg.TranscribeWorkers, fc.Transcription.Workers)
	setSeconds(&cfg.TranscribeTimeout, fc.Transcription.TimeoutSec)
	if fc.Transcription.SegmentDurationMS > 0 {
		cfg.SegmentDuration = time.Duration(fc.Transcription.SegmentDurationMS) * time.Millisecond
	}
	setStr(&cfg.FFmpegPath, fc.Transcription.FFmpegPath)

	setStr(&cfg.OllamaAPIURL, fc.AI.OllamaAPIURL)
	setStr(&cfg.OllamaEmbedURL, fc.AI.OllamaEmbedURL)
	setStr(&cfg.OllamaLLMModel, fc.AI.OllamaLLMModel)
	setStr(&cfg.OllamaEmbedModel, fc.AI.OllamaEmbedModel)
	setSeconds(&cfg.LLMTimeout, fc.AI.LLMTimeoutSec)
	setSeconds(&cfg.EmbedTimeout, fc.AI.EmbedTimeoutSec)
	setSeconds(&cfg.RetryMaxElapsed, fc.AI.RetryMaxSec)

	setInt(&cfg.ChunkWords, fc.Search.ChunkWords)
	setInt(&cfg.ChunkOverlap, fc.Search.ChunkOverlap)
	setInt(&cfg.SearchTopK, fc.Search.TopK)
	if fc.Search.AnswerStream != nil {
		cfg.AnswerStream = *fc.Search.AnswerStream
	}
	setStr(&cfg.VectorDriver, fc.Search.VectorDriver)
}

func applyEnv(cfg *Config) {
	cfg.Port = envInt("PORT", cfg.Port)
	cfg.Environment = envStr("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.UploadDir = envStr("UPLOAD_DIR", cfg.UploadDir)
	cfg.MaxUploadMB = envInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)

	cfg.QueueDriver = envStr("QUEUE_DRIVER", cfg.QueueDriver)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.JobWorkers = envInt("JOB_WORKERS", cfg.JobWorkers)
	cfg.JobQueueSize = envInt("JOB_QUEUE_SIZE", cfg.JobQueueSize)
	cfg.JobTimeout = envSeconds("JOB_TIMEOUT_SEC", cfg.JobTimeout)

	cfg.WhisperURL = envStr("WHISPER_URL", cfg.WhisperURL)
	cfg.WhisperModel = envStr("WHISPER_MODEL", cfg.WhisperModel)
	cfg.TranscribeWorkers = envInt("TRANSCRIBE_WORKERS", cfg.TranscribeWorkers)
	cfg.TranscribeTimeout = envSeconds("TRANSCRIBE_TIMEOUT_SEC", cfg.TranscribeTimeout)
	cfg.SegmentDuration = time.Duration(envInt("SEGMENT_DURATION_MS", int(cfg.SegmentDuration/time.Millisecond))) * time.Millisecond
	cfg.FFmpegPath = envStr("FFMPEG_PATH", cfg.FFmpegPath)

	cfg.OllamaAPIURL = envStr("OLLAMA_API_URL", cfg.OllamaAPIURL)
	cfg.OllamaEmbedURL = envStr("OLLAMA_EMBED_URL", cfg.OllamaEmbedURL)
	cfg.OllamaLLMModel = envStr("OLLAMA_LLM_MODEL", cfg.OllamaLLMModel)
	cfg.OllamaEmbedModel = envStr("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel)
	cfg.LLMTimeout = envSeconds("LLM_TIMEOUT_SEC", cfg.LLMTimeout)
	cfg.EmbedTimeout = envSeconds("EMBED_TIMEOUT_SEC", cfg.EmbedTimeout)
	cfg.RetryMaxElapsed = envSeconds("RETRY_MAX_ELAPSED_SEC", cfg.RetryMaxElapsed)

	cfg.ChunkWords = envInt("CHUNK_WORDS", cfg.ChunkWords)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.SearchTopK = envInt("SEARCH_TOP_K", cfg.SearchTopK)
	cfg.AnswerStream = envBool("ANSWER_STREAM", cfg.AnswerStream)
	cfg.VectorDriver = envStr("VECTOR_DRIVER", cfg.VectorDriver)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.OllamaAPIURL == "" || c.OllamaEmbedURL == "" || c.OllamaLLMModel == "" || c.OllamaEmbedModel == "" {
		errs = append(errs, errors.New("one or more AI service settings are not set (OLLAMA_API_URL, OLLAMA_EMBED_URL, OLLAMA_LLM_MODEL, OLLAMA_EMBED_MODEL)"))
	}
	if c.TranscribeWorkers < 1 {
		errs = append(errs, fmt.Errorf("TRANSCRIBE_WORKERS must be positive, got %d", c.TranscribeWorkers))
	}
	if c.JobWorkers < 1 {
		errs = append(errs, fmt.Errorf("JOB_WORKERS must be positive, got %d", c.JobWorkers))
	}
	if c.SegmentDuration <= 0 {
		errs = append(errs, errors.New("SEGMENT_DURATION_MS must be positive"))
	}
	if c.ChunkWords < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWords {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkWords))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.SearchTopK < 1 {
		errs = append(errs, fmt.Errorf("SEARCH_TOP_K must be positive, got %d", c.SearchTopK))
	}
	switch c.QueueDriver {
	case "memory", "nats":
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_DRIVER %q", c.QueueDriver))
	}
	switch c.VectorDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("VECTOR_DRIVER=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_DRIVER %q", c.VectorDriver))
	}
	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	return time.Duration(envInt(key, int(fallback/time.Second))) * time.Second
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v int) {
	if v > 0 {
		*dst = time.Duration(v) * time.Second
	}
}
