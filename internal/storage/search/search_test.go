package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

func newTestIndexer(t *testing.T, handler http.HandlerFunc) *Indexer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("elasticsearch.NewClient() error = %v", err)
	}
	return New(client, "")
}

func TestIndexer_IndexSegmentPostsDocument(t *testing.T) {
	var gotPath string
	var gotDoc document
	indexer := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotDoc)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"created"}`))
	})

	segment := model.TranscriptSegment{
		SegmentID:    "seg1",
		SessionID:    "sess1",
		StreamID:     "s1",
		TextRedacted: "the weather is nice",
	}
	if err := indexer.IndexSegment(context.Background(), segment); err != nil {
		t.Fatalf("IndexSegment() error = %v", err)
	}
	if gotPath != "/transcripts/_doc/seg1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotDoc.Text != "the weather is nice" {
		t.Errorf("indexed text = %q", gotDoc.Text)
	}
}

func TestIndexer_IndexSegmentReturnsErrorOnESFailure(t *testing.T) {
	indexer := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	err := indexer.IndexSegment(context.Background(), model.TranscriptSegment{SegmentID: "seg1"})
	if err == nil {
		t.Fatal("IndexSegment() error = nil, want error on ES failure")
	}
}

func TestIndexer_EnsureIndexCreatesWhenMissing(t *testing.T) {
	var createCalled bool
	indexer := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			createCalled = true
			w.Write([]byte(`{"acknowledged":true}`))
		}
	})

	if err := indexer.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if !createCalled {
		t.Errorf("expected index creation request")
	}
}

func TestIndexer_EnsureIndexSkipsCreateWhenPresent(t *testing.T) {
	var createCalled bool
	indexer := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			createCalled = true
		}
	})

	if err := indexer.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if createCalled {
		t.Errorf("did not expect index creation request")
	}
}

func TestIndexer_SearchReturnsResults(t *testing.T) {
	indexer := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"hits": {
				"hits": [
					{"_source": {"segment_id":"seg1","text":"he has a gun","stream_id":"s1","session_id":"sess1"}}
				]
			}
		}`))
	})

	results, err := indexer.Search(context.Background(), Query{Text: "gun", SessionID: "sess1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].SegmentID != "seg1" {
		t.Errorf("results = %+v", results)
	}
}
