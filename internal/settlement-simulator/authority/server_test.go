package authority

import (
	"bytes"
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
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/settlement"
)

var opened = time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC)

func newAuthority(t *testing.T) (*Server, *settlement.Client, *httptest.Server) {
	t.Helper()
	s := NewServer(nil, 45*time.Second)
	s.now = func() time.Time { return opened }
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, settlement.New(srv.URL), srv
}

func result(winner string, order ...string) combat.Result {
	r := combat.Result{WinnerID: winner}
	for i, id := range order {
		r.Placements = append(r.Placements, combat.Placement{FighterID: id, Place: i + 1})
	}
	return r
}

func TestLifecycleThroughClient(t *testing.T) {
	s, c, _ := newAuthority(t)
	ctx := context.Background()
	var outcomes []string
	s.OnRequest = func(op, outcome string) { outcomes = append(outcomes, op+":"+outcome) }

	deadline, err := c.OpenRound(ctx, 1, "r1", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.True(t, opened.Add(45*time.Second).Equal(deadline))

	// repetição com a mesma chave devolve o mesmo prazo
	s.now = func() time.Time { return opened.Add(time.Hour) }
	again, err := c.OpenRound(ctx, 1, "r1", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, deadline, again)

	require.NoError(t, c.SubmitResult(ctx, 1, "r1", result("b", "b", "c", "a")))
	require.NoError(t, c.SubmitResult(ctx, 1, "r1", result("b", "b", "c", "a")))

	require.NoError(t, c.SubmitPayout(ctx, 1, betting.PayoutResult{RoundID: "r1", WinnerID: "b", NetPool: 900}))

	s.mu.Lock()
	rd := *s.rounds["r1"]
	s.mu.Unlock()
	assert.Equal(t, "b", rd.WinnerID)
	assert.True(t, rd.PayoutSettled)
	assert.Equal(t, []string{"open:ok", "open:replay", "result:ok", "result:replay", "payout:ok"}, outcomes)
}

func TestRejections(t *testing.T) {
	_, c, _ := newAuthority(t)
	ctx := context.Background()

	_, err := c.OpenRound(ctx, 0, "r1", []string{"a"})
	assert.ErrorContains(t, err, "http 400")

	assert.ErrorContains(t, c.SubmitResult(ctx, 0, "ghost", result("a", "a", "b")), "http 404")

	_, err = c.OpenRound(ctx, 0, "r2", []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.ErrorContains(t, c.SubmitPayout(ctx, 0, betting.PayoutResult{RoundID: "r2", WinnerID: "a"}), "http 409")
	assert.ErrorContains(t, c.SubmitResult(ctx, 0, "r2", result("a", "b", "a", "c")), "http 400")
	assert.ErrorContains(t, c.SubmitResult(ctx, 0, "r2", result("a", "a", "b", "z")), "fighter not in round")

	require.NoError(t, c.SubmitResult(ctx, 0, "r2", result("a", "a", "b", "c")))
	assert.ErrorContains(t, c.SubmitPayout(ctx, 0, betting.PayoutResult{RoundID: "r2", WinnerID: "c"}), "http 400")
}

func TestConflictingResultWithoutKey(t *testing.T) {
	_, c, srv := newAuthority(t)
	ctx := context.Background()
	_, err := c.OpenRound(ctx, 0, "r3", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.NoError(t, c.SubmitResult(ctx, 0, "r3", result("a", "a", "b", "c")))

	body, _ := json.Marshal(map[string]any{
		"roundId": "r3", "winnerId": "b",
		"placements": []combat.Placement{{FighterID: "b", Place: 1}, {FighterID: "a", Place: 2}, {FighterID: "c", Place: 3}},
	})
	res, err := http.Post(srv.URL+"/rounds/r3/result", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res, err = http.Get(srv.URL + "/rounds/r3")
	require.NoError(t, err)
	defer res.Body.Close()
	var rd Round
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rd))
	assert.Equal(t, "a", rd.WinnerID)
}

func TestFailureInjection(t *testing.T) {
	s, c, _ := newAuthority(t)
	s.FailPercent = 100

	_, err := c.OpenRound(context.Background(), 0, "r4", []string{"a", "b"})
	assert.ErrorContains(t, err, "http 503")
}
