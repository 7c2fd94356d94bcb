package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yanun0323/errors"

	"goalbot/internal/obs"
	"goalbot/internal/schema"
)

// LiveClient places orders against a venue's REST API.
type LiveClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewLiveClient creates a REST execution client for one venue.
func NewLiveClient(baseURL, apiKey string) *LiveClient {
	return &LiveClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type orderRequest struct {
	Market string  `json:"market"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	Type   string  `json:"type"`
}

type orderResponse struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	FillPrice float64 `json:"fill_price"`
	FilledUSD float64 `json:"filled_size"`
	Reason    string  `json:"reason"`
}

type priceResponse struct {
	Market string  `json:"market"`
	Price  float64 `json:"price"`
}

// PlaceOrder submits a limit order and maps the venue response to a result.
func (c *LiveClient) PlaceOrder(ctx context.Context, intent schema.OrderIntent) (schema.OrderResult, error) {
	body, err := json.Marshal(orderRequest{
		Market: intent.MarketID,
		Side:   intent.Side.String(),
		Price:  intent.LimitPrice,
		Size:   intent.SizeUSD,
		Type:   "limit",
	})
	if err != nil {
		return schema.OrderResult{}, errors.Wrap(err, "encode order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return schema.OrderResult{}, errors.Wrap(err, "build order request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return schema.OrderResult{}, errors.Wrap(err, "place order")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return schema.OrderResult{}, errors.Errorf("place order: status %d", resp.StatusCode)
	}

	var decoded orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return schema.OrderResult{}, errors.Wrap(err, "decode order response")
	}

	result := schema.OrderResult{
		OrderID:   decoded.OrderID,
		FillPrice: decoded.FillPrice,
		FilledUSD: decoded.FilledUSD,
		Reason:    decoded.Reason,
	}
	switch decoded.Status {
	case "filled":
		result.Status = schema.OrderFilled
	case "partial":
		result.Status = schema.OrderPartial
	default:
		result.Status = schema.OrderRejected
	}
	obs.OrdersTotal.WithLabelValues(intent.Strategy.String(), result.Status.String()).Inc()
	return result, nil
}

// MarketPrice fetches the current market price.
func (c *LiveClient) MarketPrice(ctx context.Context, marketID string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/markets/"+marketID+"/price", nil)
	if err != nil {
		return 0, errors.Wrap(err, "build price request")
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetch price")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("fetch price: status %d", resp.StatusCode)
	}

	var decoded priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, errors.Wrap(err, "decode price response")
	}
	return decoded.Price, nil
}
