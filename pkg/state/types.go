package state

import "time"

// MarketSnapshot is the latest observed price/volume for one symbol.
// Stored latest-wins, keyed by Symbol.
type MarketSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume24h float64   `json:"volume_24h"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArbitrageOpportunity is a detected cross-venue spread. Stored as a
// bounded sequence that evicts the lowest ProfitPercent first when full.
type ArbitrageOpportunity struct {
	ID            string    `json:"id"`
	Pair          string    `json:"pair"`
	Venues        []string  `json:"venues"`
	ProfitPercent float64   `json:"profit_percent"`
	ObservedAt    time.Time `json:"observed_at"`
}

// WhaleMovement is a large on-chain transfer. Stored as a bounded
// oldest-evicted sequence.
type WhaleMovement struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// ResearchReport is a generated research artifact. Stored as a bounded
// oldest-evicted sequence.
type ResearchReport struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentPiece is a generated piece of social/content output. Stored as
// a bounded oldest-evicted sequence.
type ContentPiece struct {
	ID        string    `json:"id"`
	Format    string    `json:"format"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (m MarketSnapshot) key() string { return m.Symbol }
