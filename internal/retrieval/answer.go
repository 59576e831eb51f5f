// Package retrieval answers questions about one meeting from its indexed
// transcript chunks.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/vectorstore"
)

const (
	DefaultTopK = 3

	QueryFailedAnswer = "Could not process your query."
	NoContextAnswer   = "I couldn't find any information related to your query in this meeting's transcript."
	GenerationFailed  = "There was an error generating an answer."
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest, fn func(fragment string) error) error
}

type Answerer struct {
	embed  Embedder
	index  vectorstore.Index
	llm    Generator
	stream bool
	log    *logger.Logger
}

func New(e Embedder, idx vectorstore.Index, g Generator, stream bool, log *logger.Logger) *Answerer {
	if log == nil {
		log = logger.Discard()
	}
	return &Answerer{embed: e, index: idx, llm: g, stream: stream, log: log.Component("retrieval")}
}

// Answer always returns text meant for the user. Failures map to fixed
// sentences instead of errors.
func (a *Answerer) Answer(ctx context.Context, meetingID int64, query string, k int) string {
	if k < 1 {
		k = DefaultTopK
	}
	log := a.log.WithMeeting(meetingID)

	emb, err := a.embed.Embed(ctx, query)
	if err != nil {
		log.WithError(err).Warn("query embedding failed")
		return QueryFailedAnswer
	}

	chunks, err := a.index.Query(ctx, emb, k, meetingID)
	if err != nil {
		log.WithError(err).Error("vector index query failed")
		return NoContextAnswer
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.MeetingID != meetingID {
			continue
		}
		texts = append(texts, c.Text)
	}
	if len(texts) == 0 {
		return NoContextAnswer
	}

	var sb strings.Builder
	err = a.llm.Generate(ctx, llm.GenerateRequest{
		Prompt: BuildPrompt(strings.Join(texts, "\n\n"), query),
		Stream: a.stream,
	}, func(fragment string) error {
		sb.WriteString(fragment)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("answer generation failed")
		return GenerationFailed
	}

	log.WithField("chunks", len(texts)).Debug("query answered")
	return sb.String()
}

func BuildPrompt(contextText, query string) string {
	return fmt.Sprintf(`You are a helpful assistant. Using ONLY the context below, answer the user's question. If the
answer is not in the context, say that you cannot find the answer in the provided text. Be concise.

Context:
---
%s
---

User Question: %s
Answer:`, contextText, query)
}
