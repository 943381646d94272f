package model

import (
	"encoding/json"
	"time"
)

// Bar represents one finalized OHLC price bar for a single instrument and
// timeframe. All prices are int64 minor units (cents) to avoid floating-point
// drift.
type Bar struct {
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`      // timeframe in seconds
	OpenTS   time.Time `json:"open_ts"` // bar open time (UTC)
	CloseTS  time.Time `json:"close_ts"`
	Open     int64     `json:"open"` // cents
	High     int64     `json:"high"`
	Low      int64     `json:"low"`
	Close    int64     `json:"close"`
	Volume   int64     `json:"volume"`
}

// Key returns a unique key for this bar's instrument: "exchange:token".
func (b *Bar) Key() string {
	return b.Exchange + ":" + b.Token
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}
