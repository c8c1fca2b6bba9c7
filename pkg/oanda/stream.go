package oanda

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// TickHandler receives each streamed price.
type TickHandler func(t time.Time, bid, ask float64)

// StreamClient consumes the OANDA pricing stream (HTTP chunked JSON lines)
// and delivers ticks to a callback. Reconnects with a fixed backoff until the
// context is canceled.
type StreamClient struct {
	StreamURL  string
	AccountID  string
	token      string
	httpClient *http.Client
	backoff    time.Duration
}

// NewStreamClient builds a streaming client; practice toggles the host.
func NewStreamClient(accountID, token string, practice bool) *StreamClient {
	base := "https://stream-fxtrade.oanda.com"
	if practice {
		base = "https://stream-fxpractice.oanda.com"
	}
	return &StreamClient{
		StreamURL: base,
		AccountID: accountID,
		token:     token,
		// No overall timeout: the stream stays open indefinitely.
		httpClient: &http.Client{},
		backoff:    5 * time.Second,
	}
}

// Run streams prices for the instrument until ctx is canceled, invoking
// onTick for every PRICE frame. Heartbeats keep the connection alive and are
// dropped.
func (s *StreamClient) Run(ctx context.Context, instrument string, onTick TickHandler) {
	for {
		if err := s.stream(ctx, instrument, onTick); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("oanda stream: %v, reconnecting in %s", err, s.backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}

func (s *StreamClient) stream(ctx context.Context, instrument string, onTick TickHandler) error {
	path := fmt.Sprintf("%s/v3/accounts/%s/pricing/stream?instruments=%s",
		s.StreamURL, s.AccountID, url.QueryEscape(instrument))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect: status %d", resp.StatusCode)
	}
	log.Printf("oanda stream: connected for %s", instrument)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg PriceMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			log.Printf("oanda stream: parse error: %v", err)
			continue
		}
		if msg.Type != "PRICE" {
			continue
		}
		bid, ask := msg.Bid(), msg.Ask()
		if bid == 0 || ask == 0 {
			continue
		}
		onTick(msg.Time, bid, ask)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return fmt.Errorf("stream ended")
}
