package ordapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFetchBlockInfoRetriesOn503(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"timestamp": 1700000000}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	info, err := c.FetchBlockInfo(context.Background(), 800000)
	if err != nil {
		t.Fatalf("FetchBlockInfo: %v", err)
	}
	if info.Timestamp != 1700000000 {
		t.Fatalf("unexpected timestamp: %d", info.Timestamp)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetchBlockInfoNonRetriable4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.FetchBlockInfo(context.Background(), 800000)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retriable 4xx, got %d", got)
	}
}
