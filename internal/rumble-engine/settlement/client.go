package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
	settledto "github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/settlement/dto"
)

// Client fala com a autoridade de liquidação por HTTP. Cada chamada leva
// Idempotency-Key, então repetir após timeout é seguro.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *Client) OpenRound(ctx context.Context, slotIndex int, roundID string, fighters []string) (time.Time, error) {
	var out settledto.OpenRoundResponse
	err := c.post(ctx, "/rounds", roundID+":open", settledto.OpenRoundRequest{
		SlotIndex: slotIndex, RoundID: roundID, Fighters: fighters,
	}, &out)
	if err != nil {
		return time.Time{}, err
	}
	if out.BettingDeadline.IsZero() {
		return time.Time{}, fmt.Errorf("settlement open %s: empty deadline", roundID)
	}
	return out.BettingDeadline, nil
}

func (c *Client) SubmitResult(ctx context.Context, slotIndex int, roundID string, r combat.Result) error {
	return c.post(ctx, "/rounds/"+url.PathEscape(roundID)+"/result", roundID+":result", settledto.ResultRequest{
		SlotIndex:  slotIndex,
		RoundID:    roundID,
		WinnerID:   r.WinnerID,
		Placements: r.Placements,
		TotalTurns: r.TotalTurns,
	}, nil)
}

func (c *Client) SubmitPayout(ctx context.Context, slotIndex int, p betting.PayoutResult) error {
	return c.post(ctx, "/rounds/"+url.PathEscape(p.RoundID)+"/payout", p.RoundID+":payout", settledto.PayoutRequest{
		SlotIndex: slotIndex, Payout: p,
	}, nil)
}

func (c *Client) post(ctx context.Context, path, idemKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("settlement %s http %d: %s", path, res.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
