package domain

import "time"

// Trade records a matched BUY/SELL pair. The two orders may reference
// different symbols when their prices coincide.
type Trade struct {
	TradeID     string
	BuyOrderID  string
	SellOrderID string
	BuySymbol   string
	SellSymbol  string
	Price       int64
	Quantity    int64
	ExecutedAt  time.Time
}
