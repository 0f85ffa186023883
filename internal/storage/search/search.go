// Package search indexes redacted transcript text into Elasticsearch for
// full-text, fuzzy, regex, and boolean search, grounded on the storage
// service's es_indexer.py.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// DefaultIndexName is the Elasticsearch index transcript segments are
// written to.
const DefaultIndexName = "transcripts"

// indexMapping is the index body used by EnsureIndex. Only redacted text is
// analyzed for search; the other fields are exact-match metadata.
const indexMapping = `{
  "mappings": {
    "properties": {
      "segment_id":       {"type": "keyword"},
      "session_id":       {"type": "keyword"},
      "stream_id":        {"type": "keyword"},
      "speaker_label":    {"type": "keyword"},
      "timestamp":        {"type": "date"},
      "text":             {"type": "text", "analyzer": "standard"},
      "sentiment_label":  {"type": "keyword"},
      "language":         {"type": "keyword"}
    }
  }
}`

type document struct {
	SegmentID      string `json:"segment_id"`
	SessionID      string `json:"session_id"`
	StreamID       string `json:"stream_id"`
	SpeakerLabel   string `json:"speaker_label"`
	Timestamp      string `json:"timestamp"`
	Text           string `json:"text"`
	SentimentLabel string `json:"sentiment_label"`
	Language       string `json:"language"`
}

// Indexer indexes and searches redacted transcript segments. A
// TranscriptWriter calls IndexSegment after each successful database write;
// only the redacted text is ever stored here.
type Indexer struct {
	client *elasticsearch.Client
	index  string
}

// New returns an Indexer over client, writing to index (DefaultIndexName if
// empty).
func New(client *elasticsearch.Client, index string) *Indexer {
	if index == "" {
		index = DefaultIndexName
	}
	return &Indexer{client: client, index: index}
}

// EnsureIndex creates the transcripts index with its mapping if it does not
// already exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	existsReq := esapi.IndicesExistsRequest{Index: []string{i.index}}
	res, err := existsReq.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("search: check index exists: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	createReq := esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  bytes.NewReader([]byte(indexMapping)),
	}
	created, err := createReq.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("search: create index: %w", err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return fmt.Errorf("search: create index: %s", created.String())
	}
	slog.Info("search index created", "index", i.index)
	return nil
}

// IndexSegment indexes segment's redacted text and metadata, keyed by
// segment ID so a re-index overwrites rather than duplicates.
func (i *Indexer) IndexSegment(ctx context.Context, segment model.TranscriptSegment) error {
	doc := document{
		SegmentID:      segment.SegmentID,
		SessionID:      segment.SessionID,
		StreamID:       segment.StreamID,
		SpeakerLabel:   segment.SpeakerLabel,
		Text:           segment.TextRedacted,
		SentimentLabel: segment.SentimentLabel,
		Language:       segment.Language,
	}
	if !segment.CreatedAt.IsZero() {
		doc.Timestamp = segment.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: segment.SegmentID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("search: index segment %s: %w", segment.SegmentID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index segment %s: %s", segment.SegmentID, res.String())
	}
	return nil
}

// Result is one hit returned by Search.
type Result struct {
	SegmentID string `json:"segment_id"`
	Text      string `json:"text"`
	StreamID  string `json:"stream_id"`
	SessionID string `json:"session_id"`
}

// Query narrows a Search call to a specific session and/or stream.
type Query struct {
	Text      string
	SessionID string
	StreamID  string
	Size      int
}

// Search runs a full-text boolean query across indexed transcripts,
// optionally filtered by session and stream ID.
func (i *Indexer) Search(ctx context.Context, q Query) ([]Result, error) {
	size := q.Size
	if size <= 0 {
		size = 20
	}

	must := []map[string]any{
		{"match": map[string]any{"text": map[string]any{"query": q.Text}}},
	}
	if q.SessionID != "" {
		must = append(must, map[string]any{"term": map[string]any{"session_id": q.SessionID}})
	}
	if q.StreamID != "" {
		must = append(must, map[string]any{"term": map[string]any{"stream_id": q.StreamID}})
	}

	body := map[string]any{
		"query":     map[string]any{"bool": map[string]any{"must": must}},
		"highlight": map[string]any{"fields": map[string]any{"text": map[string]any{}}},
		"size":      size,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: query: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		results = append(results, Result{
			SegmentID: h.Source.SegmentID,
			Text:      h.Source.Text,
			StreamID:  h.Source.StreamID,
			SessionID: h.Source.SessionID,
		})
	}
	return results, nil
}
