package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSendSucceedsOnFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Policy{RetryCount: 3, TimeoutSecs: 5})
	err := c.Send(context.Background(), srv.URL, Payload{
		Experiment: "exp1",
		Event:      ExperimentCompleted,
		Status:     "completed",
		Timestamp:  "2026-07-30T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Policy{RetryCount: 3, TimeoutSecs: 5})
	err := c.Send(context.Background(), srv.URL, Payload{Experiment: "exp1", Event: ExperimentFailed, Status: "report-failed", Timestamp: "2026-07-30T00:00:00Z"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSendExhaustsRetriesAndFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Policy{RetryCount: 2, TimeoutSecs: 5})
	err := c.Send(context.Background(), srv.URL, Payload{Experiment: "exp1", Event: ExperimentAborted, Status: "report-failed", Timestamp: "2026-07-30T00:00:00Z"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestDefaultPolicyMatchesSpecDefaults(t *testing.T) {
	p := DefaultPolicy()
	if p.RetryCount != 3 || p.TimeoutSecs != 30 {
		t.Fatalf("unexpected default policy: %+v", p)
	}
}
