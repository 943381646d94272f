package model

import (
	"encoding/json"
	"time"
)

// SignalKind is the kind of trade signal emitted by the scanner.
type SignalKind string

const (
	SignalEnter      SignalKind = "ENTER"
	SignalTakeProfit SignalKind = "TAKE_PROFIT"
	SignalStopLoss   SignalKind = "STOP_LOSS"
)

// Signal is a host-facing trade signal record, ready for journaling,
// publishing and notification. Price/Index are the event's own level and bar;
// TakeProfit/StopLoss are set on ENTER signals only.
type Signal struct {
	Kind       SignalKind  `json:"kind"`
	Token      string      `json:"token"`
	Exchange   string      `json:"exchange"`
	TF         int         `json:"tf"`
	Price      int64       `json:"price"` // cents
	Index      int         `json:"index"`
	TS         time.Time   `json:"ts"`
	Direction  Direction   `json:"direction"`
	TakeProfit *PriceLevel `json:"take_profit,omitempty"`
	StopLoss   *PriceLevel `json:"stop_loss,omitempty"`
	StartIndex int         `json:"start_index"` // bounds of the confirmed impulse
	EndIndex   int         `json:"end_index"`
}

// Key returns a unique key for this signal's instrument: "exchange:token".
func (s *Signal) Key() string {
	return s.Exchange + ":" + s.Token
}

// JSON returns the JSON-encoded signal (ignoring errors for hot-path usage).
func (s *Signal) JSON() []byte {
	data, _ := json.Marshal(s)
	return data
}
