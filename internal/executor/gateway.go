package executor

import (
	"context"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/oanda"
)

// Fill is the result of a submitted bracket order.
type Fill struct {
	OrderID string
	Price   float64
}

// PositionState is the gateway's view of the open position.
type PositionState struct {
	LongUnits    float64
	ShortUnits   float64
	UnrealizedPL float64
}

// Open reports whether either side carries units.
func (p PositionState) Open() bool { return p.LongUnits != 0 || p.ShortUnits != 0 }

// AccountState is the subset of the account we surface.
type AccountState struct {
	Balance      float64
	UnrealizedPL float64
}

// Gateway abstracts the broker so the execution path is identical in live and
// dry-run modes.
type Gateway interface {
	// PlaceBracketOrder submits a market order with attached stop loss and
	// take profit. Units are signed: positive buys, negative sells.
	PlaceBracketOrder(ctx context.Context, instrument string, units int, stopLoss, takeProfit float64) (*Fill, error)

	// OpenPosition returns the current open position, or nil when flat.
	OpenPosition(ctx context.Context, instrument string) (*PositionState, error)

	// ClosePosition force-closes any open position on the instrument.
	ClosePosition(ctx context.Context, instrument string) error

	// Summary returns account balance and unrealized PnL.
	Summary(ctx context.Context) (*AccountState, error)
}

// LiveGateway routes orders to the OANDA REST API.
type LiveGateway struct {
	Client *oanda.Client
}

func (g *LiveGateway) PlaceBracketOrder(ctx context.Context, instrument string, units int, stopLoss, takeProfit float64) (*Fill, error) {
	fill, err := g.Client.CreateMarketOrder(ctx, instrument, units, stopLoss, takeProfit)
	if err != nil {
		return nil, err
	}
	return &Fill{OrderID: fill.ID, Price: fill.Price.Float()}, nil
}

func (g *LiveGateway) OpenPosition(ctx context.Context, instrument string) (*PositionState, error) {
	pos, err := g.Client.OpenPosition(ctx, instrument)
	if err != nil {
		return nil, err
	}
	if pos == nil || !pos.Open() {
		return nil, nil
	}
	return &PositionState{
		LongUnits:    pos.Long.Units.Float(),
		ShortUnits:   pos.Short.Units.Float(),
		UnrealizedPL: pos.UnrealizedPL.Float(),
	}, nil
}

func (g *LiveGateway) ClosePosition(ctx context.Context, instrument string) error {
	pos, err := g.OpenPosition(ctx, instrument)
	if err != nil {
		return err
	}
	if pos == nil {
		return nil
	}
	return g.Client.ClosePosition(ctx, instrument, pos.LongUnits > 0, pos.ShortUnits < 0)
}

func (g *LiveGateway) Summary(ctx context.Context) (*AccountState, error) {
	acct, err := g.Client.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &AccountState{
		Balance:      acct.Balance.Float(),
		UnrealizedPL: acct.UnrealizedPL.Float(),
	}, nil
}
