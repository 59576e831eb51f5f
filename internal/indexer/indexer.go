// Package indexer splits transcripts into overlapping word windows and stores
// their embeddings for retrieval.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
	"meeting-insights-go/internal/vectorstore"
)

const (
	DefaultChunkWords   = 300
	DefaultChunkOverlap = 50
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkWords splits text on whitespace into windows of size words, each
// starting size-overlap words after the previous one. The last window ends
// at the final word.
func ChunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size < 1 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	stride := size - overlap

	var chunks []string
	for start := 0; ; start += stride {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

type Indexer struct {
	embed   Embedder
	index   vectorstore.Index
	size    int
	overlap int
	log     *logger.Logger
}

func New(e Embedder, idx vectorstore.Index, size, overlap int, log *logger.Logger) (*Indexer, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Indexer{embed: e, index: idx, size: size, overlap: overlap, log: log.Component("indexer")}, nil
}

// Index replaces whatever is stored for meetingID with the chunks of
// transcript. Chunks that fail to embed are skipped; if none embed, nothing
// is written. Store failures come back as *vectorstore.IndexError.
func (ix *Indexer) Index(ctx context.Context, meetingID int64, transcript string) error {
	texts := ChunkWords(transcript, ix.size, ix.overlap)
	if len(texts) == 0 {
		return nil
	}
	log := ix.log.WithMeeting(meetingID)

	chunks := make([]types.TranscriptChunk, 0, len(texts))
	for pos, text := range texts {
		emb, err := ix.embed.Embed(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).WithField("position", pos).Warn("embedding failed, chunk dropped")
			continue
		}
		chunks = append(chunks, types.TranscriptChunk{
			ID:        fmt.Sprintf("%d_%d", meetingID, len(chunks)),
			MeetingID: meetingID,
			Position:  pos,
			Text:      text,
			Embedding: emb,
		})
	}
	if len(chunks) == 0 {
		log.WithField("chunks", len(texts)).Warn("no chunk could be embedded, meeting not indexed")
		return nil
	}

	if err := ix.index.ReplaceMeeting(ctx, meetingID, chunks); err != nil {
		return asIndexError("replace", err)
	}

	log.WithFields(logrus.Fields{
		"chunks":  len(chunks),
		"dropped": len(texts) - len(chunks),
	}).Info("transcript indexed")
	return nil
}

func asIndexError(op string, err error) error {
	var ie *vectorstore.IndexError
	if errors.As(err, &ie) {
		return err
	}
	return &vectorstore.IndexError{Op: op, Err: err}
}
