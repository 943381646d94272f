package feed

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"wavescan/internal/model"

	"github.com/go-resty/resty/v2"
)

// BackfillConfig configures the REST history client.
type BackfillConfig struct {
	BaseURL string // e.g. "http://localhost:8080/api/v1"
	Timeout time.Duration
}

// Backfill fetches historical finalized bars over HTTP. Used to warm up the
// in-memory series before switching to the live stream.
type Backfill struct {
	client *resty.Client
}

// restBar is the wire format of the history endpoint. Prices arrive as
// decimal floats and are converted to minor units.
type restBar struct {
	Token    string  `json:"token"`
	Exchange string  `json:"exchange"`
	TF       int     `json:"tf"`
	OpenTS   int64   `json:"open_ts"`
	CloseTS  int64   `json:"close_ts"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
}

// NewBackfill creates a REST backfill client with retry on transient failures.
func NewBackfill(cfg BackfillConfig) *Backfill {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)
	return &Backfill{client: client}
}

// FetchBars returns finalized bars for an instrument opened after `after`,
// ordered by open time ascending.
func (b *Backfill) FetchBars(ctx context.Context, inst model.Instrument, after time.Time) ([]model.Bar, error) {
	var out []restBar
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token":    inst.Token,
			"exchange": inst.Exchange,
			"tf":       strconv.Itoa(inst.TF),
			"after":    strconv.FormatInt(after.Unix(), 10),
		}).
		SetResult(&out).
		Get("/bars")
	if err != nil {
		return nil, fmt.Errorf("backfill fetch %s: %w", inst.Key(), err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("backfill fetch %s: status %d", inst.Key(), resp.StatusCode())
	}

	bars := make([]model.Bar, 0, len(out))
	for _, rb := range out {
		bars = append(bars, model.Bar{
			Token:    rb.Token,
			Exchange: rb.Exchange,
			TF:       rb.TF,
			OpenTS:   time.Unix(rb.OpenTS, 0).UTC(),
			CloseTS:  time.Unix(rb.CloseTS, 0).UTC(),
			Open:     toCents(rb.Open),
			High:     toCents(rb.High),
			Low:      toCents(rb.Low),
			Close:    toCents(rb.Close),
			Volume:   rb.Volume,
		})
	}

	log.Printf("[backfill] fetched %d bars for %s", len(bars), inst.Key())
	return bars, nil
}

// toCents converts a decimal price to minor units with rounding.
func toCents(p float64) int64 {
	return int64(math.Round(p * 100))
}
