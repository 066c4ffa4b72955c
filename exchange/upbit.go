// Package exchange talks to the Upbit trading API: market orders,
// balances, and order management. The backtest engine never touches
// this package; only live runs do.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const upbitBaseURL = "https://api.upbit.com"

// Order is Upbit's view of a placed order.
type Order struct {
	UUID           string `json:"uuid"`
	Market         string `json:"market"`
	Side           string `json:"side"`
	OrdType        string `json:"ord_type"`
	State          string `json:"state"`
	Price          string `json:"price"`
	Volume         string `json:"volume"`
	ExecutedVolume string `json:"executed_volume"`
	PaidFee        string `json:"paid_fee"`
	CreatedAt      string `json:"created_at"`
}

// Balance is one currency line of the account.
type Balance struct {
	Currency     string `json:"currency"`
	Balance      string `json:"balance"`
	Locked       string `json:"locked"`
	AvgBuyPrice  string `json:"avg_buy_price"`
	UnitCurrency string `json:"unit_currency"`
}

// Amount parses the free balance.
func (b Balance) Amount() float64 {
	v, _ := strconv.ParseFloat(b.Balance, 64)
	return v
}

// Client is an authenticated Upbit REST client.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	creds Credentials
}

// NewClient wires a client for the production API.
func NewClient(creds Credentials) *Client {
	return &Client{BaseURL: upbitBaseURL, creds: creds}
}

// MarketBuy places a market buy spending the given KRW amount
// (ord_type "price": amount in, volume out).
func (c *Client) MarketBuy(ctx context.Context, symbol string, krwAmount float64) (Order, error) {
	if krwAmount <= 0 {
		return Order{}, fmt.Errorf("exchange: buy amount must be positive, got %v", krwAmount)
	}
	q := url.Values{}
	q.Set("market", symbol)
	q.Set("side", "bid")
	q.Set("ord_type", "price")
	q.Set("price", strconv.FormatFloat(krwAmount, 'f', -1, 64))

	var o Order
	err := c.do(ctx, http.MethodPost, "/v1/orders", q, &o)
	return o, err
}

// MarketSell places a market sell of the given volume (ord_type
// "market": volume in, proceeds out).
func (c *Client) MarketSell(ctx context.Context, symbol string, volume float64) (Order, error) {
	if volume <= 0 {
		return Order{}, fmt.Errorf("exchange: sell volume must be positive, got %v", volume)
	}
	q := url.Values{}
	q.Set("market", symbol)
	q.Set("side", "ask")
	q.Set("ord_type", "market")
	q.Set("volume", strconv.FormatFloat(volume, 'f', -1, 64))

	var o Order
	err := c.do(ctx, http.MethodPost, "/v1/orders", q, &o)
	return o, err
}

// Balances returns every currency line of the account.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var bs []Balance
	if err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, &bs); err != nil {
		return nil, err
	}
	return bs, nil
}

// OpenOrders lists wait-state orders for a symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	q := url.Values{}
	q.Set("market", symbol)
	q.Set("state", "wait")

	var os []Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders", q, &os); err != nil {
		return nil, err
	}
	return os, nil
}

// CancelOrder cancels one order by UUID.
func (c *Client) CancelOrder(ctx context.Context, uuid string) error {
	q := url.Values{}
	q.Set("uuid", uuid)
	return c.do(ctx, http.MethodDelete, "/v1/order", q, nil)
}

// CancelAll cancels every open order for a symbol. It keeps going on
// individual failures and reports the first error at the end.
func (c *Client) CancelAll(ctx context.Context, symbol string) error {
	orders, err := c.OpenOrders(ctx, symbol)
	if err != nil {
		return err
	}

	var firstErr error
	for _, o := range orders {
		if err := c.CancelOrder(ctx, o.UUID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	base := c.BaseURL
	if base == "" {
		base = upbitBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	u.Path = path

	rawQuery := ""
	if params != nil {
		rawQuery = params.Encode()
	}

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		u.RawQuery = rawQuery
	default:
		body = strings.NewReader(rawQuery)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}

	token, err := authToken(c.creds, rawQuery)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("exchange: %s %s http %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("exchange: decode %s: %w", path, err)
	}
	return nil
}
