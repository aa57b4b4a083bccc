package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RateSource supplies a non-negative shipping cost (cents) at
// order-placement time.
type RateSource interface {
	Quote(ctx context.Context, address domain.Address) (int64, error)
}

// FlatRate always quotes the same cost. Used directly when no rate service
// is configured, and as the fallback when the remote one is unavailable.
type FlatRate int64

func (r FlatRate) Quote(_ context.Context, _ domain.Address) (int64, error) {
	return int64(r), nil
}

type httpRateSource struct {
	client   *http.Client
	baseURL  string
	fallback FlatRate
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewHTTPRateSource(baseURL string, fallback int64, logger *zap.Logger) RateSource {
	settings := gobreaker.Settings{
		Name:        "ShippingRateSource",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &httpRateSource{
		client:   &http.Client{Timeout: 2 * time.Second},
		baseURL:  baseURL,
		fallback: FlatRate(fallback),
		cb:       gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

type quoteRequest struct {
	Address domain.Address `json:"address"`
}

type quoteResponse struct {
	Cost int64 `json:"cost"`
}

// Quote asks the remote rate service and falls back to the flat rate on any
// failure, including an open breaker. Checkout should not die because the
// rate service did.
func (s *httpRateSource) Quote(ctx context.Context, address domain.Address) (int64, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.fetchQuote(ctx, address)
	})
	if err != nil {
		s.logger.Warn(
			"Shipping quote failed, using flat rate",
			zap.Error(err),
		)

		return s.fallback.Quote(ctx, address)
	}

	cost, ok := result.(int64)
	if !ok {
		return s.fallback.Quote(ctx, address)
	}

	return cost, nil
}

func (s *httpRateSource) fetchQuote(ctx context.Context, address domain.Address) (int64, error) {
	body, err := json.Marshal(quoteRequest{Address: address})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/quote", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, err
	}

	if quote.Cost < 0 {
		return 0, fmt.Errorf("rate service returned negative cost %d", quote.Cost)
	}

	return quote.Cost, nil
}
