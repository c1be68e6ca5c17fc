// FILE: executor_http.go
// Package main – HTTPS client for the brokerage order API, satisfying
// RawExecutor. The wire contract is opaque beyond the operations this
// file issues; only this file parses brokerage order-API responses.
//
// Request/response handling (context-scoped requests, flexible JSON
// parsing with a normalized-shape-first fallback, firstNonEmpty id
// selection) is grounded on the reference repo's broker_bridge.go.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BrokerageExecutor talks to the brokerage's opaque HTTPS order API.
type BrokerageExecutor struct {
	base      string
	accountID string
	token     string
	hc        *http.Client
}

func newBrokerageExecutor(base, accountID, token string) *BrokerageExecutor {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return &BrokerageExecutor{
		base:      base,
		accountID: accountID,
		token:     token,
		hc:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *BrokerageExecutor) Name() string { return "brokerage" }

func (b *BrokerageExecutor) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "penny-imbalance/executor")
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return req, nil
}

func (b *BrokerageExecutor) do(req *http.Request) ([]byte, int, error) {
	res, err := b.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return body, res.StatusCode, fmt.Errorf("brokerage %d: %s", res.StatusCode, string(body))
	}
	return body, res.StatusCode, nil
}

func (b *BrokerageExecutor) PlaceMarket(ctx context.Context, symbol string, side Side, qty int64) (string, OrderStatusResult, error) {
	body := map[string]any{
		"account_id": b.accountID,
		"symbol":     symbol,
		"side":       string(side),
		"qty":        qty,
		"order_type": "MARKET",
	}
	req, err := b.newRequest(ctx, http.MethodPost, "/v1/orders", body)
	if err != nil {
		return "", OrderStatusResult{}, err
	}
	raw, _, err := b.do(req)
	if err != nil {
		return "", OrderStatusResult{}, err
	}
	orderID, status := parseOrderResponse(raw)
	return orderID, status, nil
}

func (b *BrokerageExecutor) PlaceLimit(ctx context.Context, symbol string, side Side, qty int64, limitPrice Money) (string, error) {
	body := map[string]any{
		"account_id":  b.accountID,
		"symbol":      symbol,
		"side":        string(side),
		"qty":         qty,
		"order_type":  "LIMIT",
		"limit_price": limitPrice.String(),
	}
	req, err := b.newRequest(ctx, http.MethodPost, "/v1/orders", body)
	if err != nil {
		return "", err
	}
	raw, _, err := b.do(req)
	if err != nil {
		return "", err
	}
	orderID, _ := parseOrderResponse(raw)
	return firstNonEmptyStr(orderID, uuid.New().String()), nil
}

func (b *BrokerageExecutor) GetOrderStatus(ctx context.Context, orderID string) (OrderStatusResult, error) {
	req, err := b.newRequest(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return OrderStatusResult{}, err
	}
	raw, _, err := b.do(req)
	if err != nil {
		return OrderStatusResult{}, err
	}
	_, status := parseOrderResponse(raw)
	return status, nil
}

func (b *BrokerageExecutor) CancelOrder(ctx context.Context, orderID string) error {
	req, err := b.newRequest(ctx, http.MethodDelete, "/v1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return err
	}
	_, _, err = b.do(req)
	return err
}

func (b *BrokerageExecutor) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	req, err := b.newRequest(ctx, http.MethodGet, "/v1/quotes/"+url.PathEscape(symbol), nil)
	if err != nil {
		return Quote{}, err
	}
	raw, _, err := b.do(req)
	if err != nil {
		return Quote{}, err
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	q := Quote{}
	if v := readStr(m, "bid"); v != "" {
		q.Bid, _ = decimal.NewFromString(v)
		q.HasBid = true
	}
	if v := readStr(m, "ask"); v != "" {
		q.Ask, _ = decimal.NewFromString(v)
		q.HasAsk = true
	}
	if v := readStr(m, "last"); v != "" {
		q.Last, _ = decimal.NewFromString(v)
		q.HasLast = true
	}
	return q, nil
}

// parseOrderResponse tries a normalized shape first, then falls back to
// flexible parsing of whatever the brokerage actually returned.
func parseOrderResponse(raw []byte) (string, OrderStatusResult) {
	var norm struct {
		OrderID        string `json:"order_id"`
		Status         string `json:"status"`
		FilledQuantity int64  `json:"filled_quantity"`
		AvgFillPrice   string `json:"avg_fill_price"`
	}
	if err := json.Unmarshal(raw, &norm); err == nil && norm.OrderID != "" {
		price, _ := decimal.NewFromString(norm.AvgFillPrice)
		return norm.OrderID, OrderStatusResult{
			Status:         OrderStatus(strings.ToUpper(norm.Status)),
			FilledQuantity: norm.FilledQuantity,
			AvgFillPrice:   price,
			Raw:            string(raw),
		}
	}

	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	orderID := readStr(m, "order_id", "orderId", "id")
	status := OrderStatus(strings.ToUpper(readStr(m, "status", "order_status")))
	filledStr := readStr(m, "filled_quantity", "filled_qty", "filled")
	priceStr := readStr(m, "avg_fill_price", "average_price", "price")
	filled, _ := strconv.ParseInt(filledStr, 10, 64)
	price, _ := decimal.NewFromString(priceStr)
	return orderID, OrderStatusResult{Status: status, FilledQuantity: filled, AvgFillPrice: price, Raw: string(raw)}
}

func readStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch t := v.(type) {
			case string:
				if strings.TrimSpace(t) != "" {
					return t
				}
			case float64:
				return strconv.FormatFloat(t, 'f', -1, 64)
			}
		}
	}
	return ""
}

func firstNonEmptyStr(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
