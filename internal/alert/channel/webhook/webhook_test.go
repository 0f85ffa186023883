package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voxsentinel/voxsentinel/internal/alert/channel/webhook"
	"github.com/voxsentinel/voxsentinel/internal/model"
)

func TestChannel_SendDeliversOnFirstSuccess(t *testing.T) {
	var gotBody model.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	ch := webhook.New(srv.URL)
	ok, err := ch.Send(context.Background(), model.Alert{StreamID: "s1", MatchedRule: "gun"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !ok {
		t.Errorf("Send() = false, want true")
	}
	if gotBody.StreamID != "s1" || gotBody.MatchedRule != "gun" {
		t.Errorf("server received = %+v", gotBody)
	}
}

func TestChannel_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	ch := webhook.New(srv.URL, webhook.WithMaxAttempts(3))
	ok, err := ch.Send(context.Background(), model.Alert{StreamID: "s1"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !ok {
		t.Errorf("Send() = false, want true after eventual success")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestChannel_ExhaustsRetriesAndReturnsError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	ch := webhook.New(srv.URL, webhook.WithMaxAttempts(2))
	ok, err := ch.Send(context.Background(), model.Alert{StreamID: "s1"})
	if err == nil {
		t.Fatal("Send() error = nil, want an error after exhausting retries")
	}
	if ok {
		t.Errorf("Send() = true, want false")
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestChannel_NameAndEnabled(t *testing.T) {
	ch := webhook.New("http://example.invalid")
	if ch.Name() != "webhook" || !ch.Enabled() {
		t.Errorf("Name() = %q, Enabled() = %v", ch.Name(), ch.Enabled())
	}
	ch.SetEnabled(false)
	if ch.Enabled() {
		t.Errorf("Enabled() = true after SetEnabled(false)")
	}
}
