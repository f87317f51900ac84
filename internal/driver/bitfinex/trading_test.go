package bitfinex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// TestPollUntilVisibleRetriesThenSucceeds exercises venue C's
// poll-until-visible create path: the order is invisible on the first
// lookup (the venue hasn't propagated it to the read endpoint yet) and
// visible on the second, and PollUntilVisible must retry rather than
// fail immediately.
func TestPollUntilVisibleRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// The first FetchOrderRow attempt misses on both the active and
		// history endpoints (calls 1 and 2); the second attempt (call 3,
		// the active endpoint) finds it.
		if n <= 2 {
			json.NewEncoder(w).Encode([][]any{})
			return
		}
		json.NewEncoder(w).Encode([][]any{
			{float64(999), nil, nil, "tBTCUSD"},
		})
	}))
	defer srv.Close()

	rc := NewRESTClient("key", "secret")
	rc.client.SetBaseURL(srv.URL)

	row, err := rc.PollUntilVisible(context.Background(), "tBTCUSD", 999, 2*time.Second)
	if err != nil {
		t.Fatalf("PollUntilVisible returned error: %v", err)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected the poll to retry past the first miss, got %d lookups", calls.Load())
	}
	if id, ok := row[0].(float64); !ok || int64(id) != 999 {
		t.Fatalf("returned row has wrong order id: %v", row)
	}
}

// TestPollUntilVisibleTimesOut confirms the poll gives up once the
// deadline passes rather than retrying forever.
func TestPollUntilVisibleTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([][]any{})
	}))
	defer srv.Close()

	rc := NewRESTClient("key", "secret")
	rc.client.SetBaseURL(srv.URL)

	_, err := rc.PollUntilVisible(context.Background(), "tBTCUSD", 999, 700*time.Millisecond)
	if err == nil {
		t.Fatal("expected PollUntilVisible to return an error once the deadline passed")
	}
}
