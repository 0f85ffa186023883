// Package nlp assembles C7, the per-token enrichment fan-out: keyword
// detection, sentiment tracking, and PII redaction all run concurrently
// against the same final transcript token, the same pattern the hot
// context assembler uses to fetch its three context components in
// parallel.
package nlp

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/nlp/keyword"
	"github.com/voxsentinel/voxsentinel/internal/nlp/pii"
	"github.com/voxsentinel/voxsentinel/internal/nlp/sentiment"
)

// Result bundles everything the three sub-pipelines produced for one
// token.
type Result struct {
	KeywordMatches    []model.KeywordMatchEvent
	Sentiment         sentiment.Result
	SentimentEscalate bool
	Redacted          pii.Result
}

// Pipeline runs the keyword detector, sentiment tracker, and PII
// redactor concurrently for each token it processes.
type Pipeline struct {
	keywords  *keyword.Detector
	sentiment *sentiment.Tracker
	redactor  pii.Redactor
}

// New builds a Pipeline from its three sub-components.
func New(keywords *keyword.Detector, sent *sentiment.Tracker, redactor pii.Redactor) *Pipeline {
	return &Pipeline{keywords: keywords, sentiment: sent, redactor: redactor}
}

// Process runs keyword detection, sentiment classification, and PII
// redaction concurrently against tok, returning once all three finish.
// elapsedSeconds is the token's position on its stream's own timeline,
// used by the sentiment tracker's rolling window.
//
// If any sub-pipeline returns an error, the others are not cancelled
// early — each result field is still populated from whichever
// sub-pipelines succeeded — but Process returns the first error so the
// caller can log and decide whether to still dispatch on a partial
// result.
func (p *Pipeline) Process(ctx context.Context, tok model.EnrichedToken, elapsedSeconds float64) (Result, error) {
	var result Result
	var eg errgroup.Group

	eg.Go(func() error {
		result.KeywordMatches = p.keywords.Detect(tok)
		return nil
	})

	eg.Go(func() error {
		if p.sentiment == nil {
			return nil
		}
		res, escalate := p.sentiment.Classify(tok.StreamID, tok.Text, elapsedSeconds)
		result.Sentiment = res
		result.SentimentEscalate = escalate
		return nil
	})

	eg.Go(func() error {
		if p.redactor == nil {
			return nil
		}
		result.Redacted = p.redactor.Redact(tok.Text)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return result, fmt.Errorf("nlp pipeline: %w", err)
	}
	return result, nil
}
