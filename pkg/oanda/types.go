package oanda

import (
	"strconv"
	"time"
)

// priceStr is how OANDA serializes decimals on the wire.
type priceStr string

func (p priceStr) Float() float64 {
	f, _ := strconv.ParseFloat(string(p), 64)
	return f
}

// PriceBucket is one side of the book at a depth level.
type PriceBucket struct {
	Price priceStr `json:"price"`
}

// PriceMessage is a PRICE (or HEARTBEAT) frame from the pricing endpoints.
type PriceMessage struct {
	Type       string        `json:"type"`
	Instrument string        `json:"instrument"`
	Time       time.Time     `json:"time"`
	Bids       []PriceBucket `json:"bids"`
	Asks       []PriceBucket `json:"asks"`
}

// Bid returns the best bid, or 0 when absent.
func (p PriceMessage) Bid() float64 {
	if len(p.Bids) == 0 {
		return 0
	}
	return p.Bids[0].Price.Float()
}

// Ask returns the best ask, or 0 when absent.
func (p PriceMessage) Ask() float64 {
	if len(p.Asks) == 0 {
		return 0
	}
	return p.Asks[0].Price.Float()
}

type pricingResponse struct {
	Prices []PriceMessage `json:"prices"`
}

// MarketOrderRequest is the body for a market order with attached brackets.
type MarketOrderRequest struct {
	Order struct {
		Instrument       string       `json:"instrument"`
		Units            string       `json:"units"`
		Type             string       `json:"type"`
		StopLossOnFill   *PriceOnFill `json:"stopLossOnFill,omitempty"`
		TakeProfitOnFill *PriceOnFill `json:"takeProfitOnFill,omitempty"`
	} `json:"order"`
}

// PriceOnFill attaches a dependent order price to a fill.
type PriceOnFill struct {
	Price string `json:"price"`
}

// OrderFill describes the fill transaction returned on order creation.
type OrderFill struct {
	ID    string   `json:"id"`
	Price priceStr `json:"price"`
}

type createOrderResponse struct {
	OrderFillTransaction   *OrderFill `json:"orderFillTransaction"`
	OrderCreateTransaction *OrderFill `json:"orderCreateTransaction"`
}

// PositionSide is one direction of an open position.
type PositionSide struct {
	Units priceStr `json:"units"`
}

// Position is the broker's view of the open position for an instrument.
type Position struct {
	Long         PositionSide `json:"long"`
	Short        PositionSide `json:"short"`
	PL           priceStr     `json:"pl"`
	UnrealizedPL priceStr     `json:"unrealizedPL"`
}

// Open reports whether either side carries units.
func (p Position) Open() bool {
	return p.Long.Units.Float() != 0 || p.Short.Units.Float() != 0
}

type positionResponse struct {
	Position Position `json:"position"`
}

// AccountSummary is the subset of the account we surface.
type AccountSummary struct {
	Balance      priceStr `json:"balance"`
	PL           priceStr `json:"pl"`
	UnrealizedPL priceStr `json:"unrealizedPL"`
}

type accountResponse struct {
	Account AccountSummary `json:"account"`
}
