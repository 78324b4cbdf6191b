package model

import (
	"fmt"
	"math"
	"time"
)

// Order is one hourly bid or ask submitted to the day-ahead market.
// Quantity >= 0 is a bid (willingness to buy), quantity < 0 is an ask
// (willingness to sell). Orders are append-only once submitted.
type Order struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant_id"`
	Date        time.Time `json:"date"`
	Hour        int       `json:"hour"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
}

// IsBid reports whether the order buys energy.
func (o Order) IsBid() bool { return o.Quantity >= 0 }

// Volume returns the unsigned order quantity.
func (o Order) Volume() float64 { return math.Abs(o.Quantity) }

// Validate checks the order schema.
func (o Order) Validate() error {
	if o.Participant == "" {
		return fmt.Errorf("order: participant id is required")
	}
	if o.Hour < 0 || o.Hour >= HoursPerDay {
		return fmt.Errorf("order: hour %d out of range", o.Hour)
	}
	if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) {
		return fmt.Errorf("order: price must be finite")
	}
	if math.IsNaN(o.Quantity) || math.IsInf(o.Quantity, 0) {
		return fmt.Errorf("order: quantity must be finite")
	}
	return nil
}
