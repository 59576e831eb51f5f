// Package app builds the service graph from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"meeting-insights-go/internal/api"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/extractor"
	"meeting-insights-go/internal/indexer"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/queue"
	"meeting-insights-go/internal/retrieval"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/vectorstore"
	"meeting-insights-go/internal/worker"
)

// ackGrace pads the NATS ack deadline past the job timeout.
const ackGrace = time.Minute

type App struct {
	Config *config.Config
	Log    *logger.Logger

	Store    store.MeetingStore
	Index    vectorstore.Index
	LLM      *llm.Client
	Answerer *retrieval.Answerer
	Pipeline *pipeline.Orchestrator
	Queue    queue.Queue
	Workers  *worker.Pool

	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}
	a := &App{Config: cfg, Log: log}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.LLM = llm.New(llm.Options{
		GenerateURL:     cfg.OllamaAPIURL,
		EmbedURL:        cfg.OllamaEmbedURL,
		Model:           cfg.OllamaLLMModel,
		EmbedModel:      cfg.OllamaEmbedModel,
		GenerateTimeout: cfg.LLMTimeout,
		EmbedTimeout:    cfg.EmbedTimeout,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
	}, log)

	chunker := audio.NewChunker(cfg.SegmentDuration, cfg.FFmpegPath, log)
	whisper := transcription.NewWhisperBackend(cfg.WhisperURL, cfg.WhisperModel, cfg.RetryMaxElapsed, log)
	coordinator := transcription.NewCoordinator(whisper, cfg.TranscribeWorkers, cfg.TranscribeTimeout, log)

	ix, err := indexer.New(a.LLM, a.Index, cfg.ChunkWords, cfg.ChunkOverlap, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("indexer: %w", err)
	}

	a.Answerer = retrieval.New(a.LLM, a.Index, a.LLM, cfg.AnswerStream, log)
	a.Pipeline = pipeline.New(pipeline.Deps{
		Chunker:     chunker,
		Transcriber: coordinator,
		Extractor:   extractor.New(a.LLM, log),
		Indexer:     ix,
		Store:       a.Store,
	}, cfg.JobTimeout, log)

	switch cfg.QueueDriver {
	case "nats":
		q, err := queue.NewNATSQueue(ctx, cfg.NatsURL, cfg.JobTimeout+ackGrace, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = q
	case "", "memory":
		a.Queue = queue.NewChanQueue(cfg.JobQueueSize)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}

	a.Workers = worker.NewPool(a.Queue, a.Pipeline, cfg.JobWorkers, log)

	log.WithField("store", a.storeKind()).
		WithField("vectors", cfg.VectorDriver).
		WithField("queue", cfg.QueueDriver).
		Info("application ready")
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config
	if cfg.DatabaseURL == "" {
		a.Store = store.NewMemoryStore()
		if cfg.VectorDriver == "postgres" {
			return fmt.Errorf("vector driver postgres requires DATABASE_URL")
		}
		a.Index = vectorstore.NewMemoryIndex()
		return nil
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.pool = pool

	ps := store.NewPostgresStore(pool)
	if err := ps.Migrate(ctx); err != nil {
		return err
	}
	a.Store = ps

	switch cfg.VectorDriver {
	case "postgres":
		pi := vectorstore.NewPostgresIndex(pool)
		if err := pi.Migrate(ctx); err != nil {
			return err
		}
		a.Index = pi
	case "", "memory":
		a.Index = vectorstore.NewMemoryIndex()
	default:
		return fmt.Errorf("unknown vector driver %q", cfg.VectorDriver)
	}
	return nil
}

func (a *App) storeKind() string {
	if a.pool != nil {
		return "postgres"
	}
	return "memory"
}

// Server returns the HTTP API bound to this application's services.
func (a *App) Server() *api.Server {
	return api.NewServer(api.Options{
		Store:          a.Store,
		Queue:          a.Queue,
		Answerer:       a.Answerer,
		UploadDir:      a.Config.UploadDir,
		MaxUploadBytes: int64(a.Config.MaxUploadMB) << 20,
		TopK:           a.Config.SearchTopK,
	}, a.Log)
}

// Close releases the queue connection and the database pool. It is safe to
// call on a partially built App.
func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Log.WithError(err).Warn("queue close failed")
		}
		a.Queue = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
