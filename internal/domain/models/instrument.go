package models

// Instrument is the static configuration of a tradable contract.
type Instrument struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange"`
	Currency   string  `json:"currency"`
	SecType    string  `json:"sec_type"`
	Multiplier float64 `json:"multiplier"`
	ConID      int64   `json:"con_id,omitempty"`
}

// IsOptionLike reports whether the contract trades on option tick sizes.
func (i Instrument) IsOptionLike() bool {
	switch i.SecType {
	case "OPT", "FOP":
		return true
	default:
		return false
	}
}

// Contract is a broker-qualified instrument.
type Contract struct {
	InstrumentID string
	ConID        int64
	Symbol       string
	Exchange     string
	Currency     string
	SecType      string
}
