package model

// Instrument identifies one scanned instrument and timeframe.
type Instrument struct {
	Token    string `json:"token"`
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"` // human-readable trading symbol
	TF       int    `json:"tf"`     // timeframe in seconds
}

// Key returns a unique key for this instrument: "exchange:token".
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.Token
}
