package model

// PriceLevel pairs a price with the bar index it was derived from.
type PriceLevel struct {
	Price int64 `json:"price"` // cents
	Index int   `json:"index"`
}

// Setup is an armed trade candidate: a confirmed impulse whose trigger level
// has been crossed, awaiting take-profit or stop-loss. At most one Setup is
// active per instrument state machine at a time.
type Setup struct {
	StartIndex   int        `json:"start_index"`
	StartPrice   int64      `json:"start_price"`
	EndIndex     int        `json:"end_index"`
	EndPrice     int64      `json:"end_price"`
	TriggerLevel int64      `json:"trigger_level"` // 50% retracement of the impulse
	TriggerIndex int        `json:"trigger_index"` // bar that crossed the trigger
	Direction    Direction  `json:"direction"`
	TakeProfit   PriceLevel `json:"take_profit"`
	StopLoss     PriceLevel `json:"stop_loss"`
}
