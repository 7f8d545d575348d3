package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	settledto "github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/settlement/dto"
)

var _ orchestrator.Settlement = (*Client)(nil)

func TestOpenRound(t *testing.T) {
	deadline := time.Date(2026, 3, 3, 3, 3, 3, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rounds", r.URL.Path)
		assert.Equal(t, "r1:open", r.Header.Get("Idempotency-Key"))

		var req settledto.OpenRoundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, settledto.OpenRoundRequest{SlotIndex: 2, RoundID: "r1", Fighters: []string{"a", "b", "c"}}, req)

		_ = json.NewEncoder(w).Encode(settledto.OpenRoundResponse{BettingDeadline: deadline})
	}))
	defer srv.Close()

	got, err := New(srv.URL).OpenRound(context.Background(), 2, "r1", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.True(t, deadline.Equal(got))
}

func TestOpenRound_EmptyDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).OpenRound(context.Background(), 0, "r1", []string{"a"})
	assert.ErrorContains(t, err, "empty deadline")
}

func TestSubmitResultAndPayout(t *testing.T) {
	var paths, keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if r.URL.Path == "/rounds/r1/payout" {
			var req settledto.PayoutRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, int64(19), req.Payout.WinnerPayouts[0].Profit)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.SubmitResult(ctx, 0, "r1", combat.Result{
		WinnerID:   "a",
		Placements: []combat.Placement{{FighterID: "a", Place: 1}, {FighterID: "b", Place: 2}, {FighterID: "c", Place: 3}},
	}))
	require.NoError(t, c.SubmitPayout(ctx, 0, betting.PayoutResult{
		RoundID:       "r1",
		WinnerPayouts: []betting.WinnerPayout{{BettorID: "alice", FighterID: "a", Place: 1, Returned: 10, Profit: 19}},
	}))

	assert.Equal(t, []string{"/rounds/r1/result", "/rounds/r1/payout"}, paths)
	assert.Equal(t, []string{"r1:result", "r1:payout"}, keys)
}

func TestSubmit_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "round not open", http.StatusConflict)
	}))
	defer srv.Close()

	err := New(srv.URL).SubmitResult(context.Background(), 0, "r1", combat.Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 409")
	assert.Contains(t, err.Error(), "round not open")
}
