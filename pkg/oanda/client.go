package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the OANDA v20 REST API for one account.
type Client struct {
	BaseURL    string
	AccountID  string
	token      string
	httpClient *http.Client
}

// NewClient builds a REST client; practice toggles the fxpractice host.
func NewClient(accountID, token string, practice bool) *Client {
	base := "https://api-fxtrade.oanda.com"
	if practice {
		base = "https://api-fxpractice.oanda.com"
	}
	return &Client{
		BaseURL:    base,
		AccountID:  accountID,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oanda %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("oanda %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Pricing fetches the current price for an instrument.
func (c *Client) Pricing(ctx context.Context, instrument string) (PriceMessage, error) {
	path := fmt.Sprintf("/v3/accounts/%s/pricing?instruments=%s", c.AccountID, url.QueryEscape(instrument))
	var resp pricingResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return PriceMessage{}, err
	}
	if len(resp.Prices) == 0 {
		return PriceMessage{}, fmt.Errorf("oanda pricing: no prices for %s", instrument)
	}
	return resp.Prices[0], nil
}

// CreateMarketOrder places a market order with stop loss and take profit
// attached on fill. units is signed: positive buys, negative sells.
func (c *Client) CreateMarketOrder(ctx context.Context, instrument string, units int, stopLoss, takeProfit float64) (*OrderFill, error) {
	var req MarketOrderRequest
	req.Order.Instrument = instrument
	req.Order.Units = fmt.Sprintf("%d", units)
	req.Order.Type = "MARKET"
	req.Order.StopLossOnFill = &PriceOnFill{Price: fmt.Sprintf("%.2f", stopLoss)}
	req.Order.TakeProfitOnFill = &PriceOnFill{Price: fmt.Sprintf("%.2f", takeProfit)}

	path := fmt.Sprintf("/v3/accounts/%s/orders", c.AccountID)
	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderFillTransaction != nil {
		return resp.OrderFillTransaction, nil
	}
	return resp.OrderCreateTransaction, nil
}

// OpenPosition returns the broker-side position for an instrument, or nil
// when flat.
func (c *Client) OpenPosition(ctx context.Context, instrument string) (*Position, error) {
	path := fmt.Sprintf("/v3/accounts/%s/positions/%s", c.AccountID, instrument)
	var resp positionResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Position.Open() {
		return nil, nil
	}
	return &resp.Position, nil
}

// ClosePosition force-closes the instrument's position on the given sides.
func (c *Client) ClosePosition(ctx context.Context, instrument string, closeLong, closeShort bool) error {
	body := map[string]string{"longUnits": "NONE", "shortUnits": "NONE"}
	if closeLong {
		body["longUnits"] = "ALL"
	}
	if closeShort {
		body["shortUnits"] = "ALL"
	}
	path := fmt.Sprintf("/v3/accounts/%s/positions/%s/close", c.AccountID, instrument)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// Summary fetches account balance and PnL.
func (c *Client) Summary(ctx context.Context) (AccountSummary, error) {
	path := fmt.Sprintf("/v3/accounts/%s/summary", c.AccountID)
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return AccountSummary{}, err
	}
	return resp.Account, nil
}
