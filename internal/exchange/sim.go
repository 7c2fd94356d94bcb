package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"goalbot/internal/obs"
	"goalbot/internal/schema"
)

// simOrder tracks one simulated order through its lifecycle.
type simOrder struct {
	id     string
	intent schema.OrderIntent
	status schema.OrderStatus
	placed time.Time
}

// SimClient is an in-process venue used in sim mode. Orders fill immediately
// at their limit price; prices come from whatever the price book was last
// told via SetPrice.
type SimClient struct {
	mu     sync.Mutex
	orders map[string]*simOrder
	prices map[string]float64
}

// NewSimClient creates a sim venue with an empty price book.
func NewSimClient() *SimClient {
	return &SimClient{
		orders: make(map[string]*simOrder),
		prices: make(map[string]float64),
	}
}

// SetPrice updates the sim price book for a market.
func (c *SimClient) SetPrice(marketID string, price float64) {
	c.mu.Lock()
	c.prices[marketID] = price
	c.mu.Unlock()
}

// PlaceOrder fills the intent at its limit price.
func (c *SimClient) PlaceOrder(ctx context.Context, intent schema.OrderIntent) (schema.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return schema.OrderResult{}, err
	}
	if intent.LimitPrice <= 0 || intent.SizeUSD <= 0 {
		return schema.OrderResult{Status: schema.OrderRejected, Reason: "invalid order"}, nil
	}

	order := &simOrder{
		id:     uuid.NewString(),
		intent: intent,
		status: schema.OrderFilled,
		placed: time.Now(),
	}

	c.mu.Lock()
	c.orders[order.id] = order
	if _, ok := c.prices[intent.MarketID]; !ok {
		c.prices[intent.MarketID] = intent.LimitPrice
	}
	c.mu.Unlock()

	result := schema.OrderResult{
		OrderID:   order.id,
		Status:    schema.OrderFilled,
		FillPrice: intent.LimitPrice,
		FilledUSD: intent.SizeUSD,
	}
	obs.OrdersTotal.WithLabelValues(intent.Strategy.String(), result.Status.String()).Inc()
	logs.Infof("sim: filled %s %s market=%s price=%.4f size=%.2f", intent.Strategy, intent.Side, intent.MarketID, result.FillPrice, result.FilledUSD)
	return result, nil
}

// MarketPrice returns the last price set for the market.
func (c *SimClient) MarketPrice(ctx context.Context, marketID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	price, ok := c.prices[marketID]
	c.mu.Unlock()
	if !ok {
		return 0, errors.Wrap(ErrUnknownMarket, "sim market price").With("market", marketID)
	}
	return price, nil
}

// Orders copies all orders seen this session, in no particular order.
func (c *SimClient) Orders() []schema.OrderResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schema.OrderResult, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, schema.OrderResult{
			OrderID:   o.id,
			Status:    o.status,
			FillPrice: o.intent.LimitPrice,
			FilledUSD: o.intent.SizeUSD,
		})
	}
	return out
}
