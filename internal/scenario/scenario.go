// Package scenario describes the catalog and order flow of one session and
// loads it from YAML.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/stockexchange/internal/domain"
)

// Stock is one catalog entry.
type Stock struct {
	Symbol        string `yaml:"symbol"`
	PricePerShare int64  `yaml:"price_per_share"`
	Quantity      int64  `yaml:"quantity"`
}

// Order is one order to submit, in file order.
type Order struct {
	Symbol   string           `yaml:"symbol"`
	Quantity int64            `yaml:"quantity"`
	Side     domain.OrderSide `yaml:"side"`
}

// Scenario is the full input of a session.
type Scenario struct {
	Stocks []Stock `yaml:"stocks"`
	Orders []Order `yaml:"orders"`
}

// Default returns the reference session: three stocks and two pairs of
// orders that match each other.
func Default() *Scenario {
	return &Scenario{
		Stocks: []Stock{
			{Symbol: "compA", PricePerShare: 50, Quantity: 3},
			{Symbol: "compB", PricePerShare: 30, Quantity: 2},
			{Symbol: "compC", PricePerShare: 10, Quantity: 1},
		},
		Orders: []Order{
			{Symbol: "compB", Quantity: 1, Side: domain.OrderSideBuy},
			{Symbol: "compA", Quantity: 1, Side: domain.OrderSideBuy},
			{Symbol: "compB", Quantity: 1, Side: domain.OrderSideSell},
			{Symbol: "compA", Quantity: 1, Side: domain.OrderSideSell},
		},
	}
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scenario. Unknown fields are
// rejected and sides are case-insensitive.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	for i := range s.Orders {
		s.Orders[i].Side = domain.OrderSide(strings.ToUpper(string(s.Orders[i].Side)))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the catalog and every order against it.
func (s *Scenario) Validate() error {
	if len(s.Stocks) == 0 {
		return &domain.ValidationError{Message: "scenario must list at least one stock"}
	}

	symbols := make(map[string]bool, len(s.Stocks))
	for i, st := range s.Stocks {
		if st.Symbol == "" {
			return &domain.ValidationError{Message: fmt.Sprintf("stocks[%d]: symbol is required", i)}
		}
		if symbols[st.Symbol] {
			return &domain.ValidationError{Message: fmt.Sprintf("stocks[%d]: duplicate symbol %s", i, st.Symbol)}
		}
		if st.PricePerShare <= 0 {
			return &domain.ValidationError{Message: fmt.Sprintf("stocks[%d]: price_per_share must be > 0", i)}
		}
		if st.Quantity < 0 {
			return &domain.ValidationError{Message: fmt.Sprintf("stocks[%d]: quantity must be >= 0", i)}
		}
		symbols[st.Symbol] = true
	}

	for i, o := range s.Orders {
		if !symbols[o.Symbol] {
			return fmt.Errorf("orders[%d]: symbol %q: %w", i, o.Symbol, domain.ErrStockNotFound)
		}
		if o.Quantity <= 0 {
			return &domain.ValidationError{Message: fmt.Sprintf("orders[%d]: quantity must be > 0", i)}
		}
		if o.Side != domain.OrderSideBuy && o.Side != domain.OrderSideSell {
			return &domain.ValidationError{Message: fmt.Sprintf("orders[%d]: side must be BUY or SELL", i)}
		}
	}
	return nil
}
