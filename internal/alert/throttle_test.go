package alert

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestThrottle_IsDuplicateFalseOnFirstOccurrence(t *testing.T) {
	client, mock := redismock.NewClientMock()
	th := NewThrottle(client)

	mock.ExpectSetNX("dedup:s1:gun:exact", 1, defaultDedupTTL).SetVal(true)

	dup, err := th.IsDuplicate(context.Background(), "s1", "gun", "exact")
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if dup {
		t.Errorf("IsDuplicate() = true, want false on first occurrence")
	}
}

func TestThrottle_IsDuplicateTrueWhenKeyAlreadyExists(t *testing.T) {
	client, mock := redismock.NewClientMock()
	th := NewThrottle(client)

	mock.ExpectSetNX("dedup:s1:gun:exact", 1, defaultDedupTTL).SetVal(false)

	dup, err := th.IsDuplicate(context.Background(), "s1", "gun", "exact")
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Errorf("IsDuplicate() = false, want true when the key already exists")
	}
}

func TestThrottle_IsDuplicateUsesConfiguredTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	th := NewThrottle(client, WithDedupTTL(30*time.Second))

	mock.ExpectSetNX("dedup:s1:test:exact", 1, 30*time.Second).SetVal(true)

	if _, err := th.IsDuplicate(context.Background(), "s1", "test", "exact"); err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
}

func TestThrottle_IsThrottledFalseUnderLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	th := NewThrottle(client, WithMaxPerMinute(30))

	mock.ExpectTxPipeline()
	mock.Regexp().ExpectZRemRangeByScore("throttle:s1", "0", `\d+`).SetVal(0)
	mock.ExpectZCard("throttle:s1").SetVal(5)
	mock.ExpectTxPipelineExec()

	throttled, err := th.IsThrottled(context.Background(), "s1")
	if err != nil {
		t.Fatalf("IsThrottled() error = %v", err)
	}
	if throttled {
		t.Errorf("IsThrottled() = true, want false when under the limit")
	}
}

func TestThrottle_IsThrottledTrueAtLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	th := NewThrottle(client, WithMaxPerMinute(30))

	mock.ExpectTxPipeline()
	mock.Regexp().ExpectZRemRangeByScore("throttle:s1", "0", `\d+`).SetVal(0)
	mock.ExpectZCard("throttle:s1").SetVal(30)
	mock.ExpectTxPipelineExec()

	throttled, err := th.IsThrottled(context.Background(), "s1")
	if err != nil {
		t.Fatalf("IsThrottled() error = %v", err)
	}
	if !throttled {
		t.Errorf("IsThrottled() = false, want true exactly at the limit")
	}
}

func TestThrottle_RecordAddsEntryAndSetsTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	th := NewThrottle(client)

	orig := newMemberID
	newMemberID = func() string { return "fixed-member" }
	defer func() { newMemberID = orig }()

	mock.ExpectTxPipeline()
	mock.Regexp().ExpectZAdd("throttle:s1", `\d+`, "fixed-member").SetVal(1)
	mock.ExpectExpire("throttle:s1", throttleKeyTTL).SetVal(true)
	mock.ExpectTxPipelineExec()

	if err := th.Record(context.Background(), "s1"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}
