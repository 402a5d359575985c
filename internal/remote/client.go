// Package remote talks to the external carts service: it reads the carts a
// user already has there and submits the local cart as a new order. Calls are
// single attempt; failures are reported, never retried.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/pkg/circuitbreaker"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errServerFailure = errors.New("remote server failure")

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker circuitbreaker.Settings
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type Client struct {
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	now     func() time.Time
	logger  *slog.Logger
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rest = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	c.breaker = circuitbreaker.New[*resty.Response](cfg.Breaker, c.logger)
	return c
}

type orderRequest struct {
	UserID   int64                  `json:"userId"`
	Date     string                 `json:"date"`
	Products []domain.RemoteProduct `json:"products"`
}

type orderResponse struct {
	ID int64 `json:"id"`
}

// FetchServerCart returns the cart records the remote service holds for userID.
func (c *Client) FetchServerCart(ctx context.Context, userID int64) ([]domain.RemoteCart, error) {
	const op = "fetch server cart"

	resp, err := c.execute(op, func() (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetPathParam("userId", strconv.FormatInt(userID, 10)).
			Get("/carts/user/{userId}")
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &domain.NetworkError{Op: op, StatusCode: resp.StatusCode()}
	}

	var carts []domain.RemoteCart
	if err := json.Unmarshal(resp.Body(), &carts); err != nil {
		return nil, &domain.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return carts, nil
}

// SubmitOrder posts items as a new remote cart. Unit prices are not sent:
// the remote service prices orders itself.
func (c *Client) SubmitOrder(ctx context.Context, userID int64, items []domain.LineItem) (domain.OrderReceipt, error) {
	const op = "submit order"

	payload, err := c.newOrderRequest(userID, items)
	if err != nil {
		return domain.OrderReceipt{}, err
	}

	resp, err := c.execute(op, func() (*resty.Response, error) {
		return c.rest.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Idempotency-Key", uuid.NewString()).
			SetBody(payload).
			Post("/carts")
	})
	if err != nil {
		return domain.OrderReceipt{}, err
	}

	code := resp.StatusCode()
	if code >= http.StatusBadRequest && code < http.StatusInternalServerError {
		return domain.OrderReceipt{}, fmt.Errorf("%w: remote rejected order with status %d", domain.ErrValidation, code)
	}
	if !resp.IsSuccess() {
		return domain.OrderReceipt{}, &domain.NetworkError{Op: op, StatusCode: code}
	}

	var created orderResponse
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return domain.OrderReceipt{}, &domain.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("order submitted", "user_id", userID, "order_id", created.ID, "products", len(payload.Products))
	return domain.OrderReceipt{OrderID: created.ID}, nil
}

func (c *Client) newOrderRequest(userID int64, items []domain.LineItem) (orderRequest, error) {
	products := make([]domain.RemoteProduct, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(strings.TrimSpace(item.ProductID), 10, 64)
		if err != nil {
			return orderRequest{}, fmt.Errorf("%w: %q", domain.ErrInvalidProductID, item.ProductID)
		}
		products = append(products, domain.RemoteProduct{ProductID: id, Quantity: item.Quantity})
	}

	return orderRequest{
		UserID:   userID,
		Date:     c.now().UTC().Format(domain.DateLayout),
		Products: products,
	}, nil
}

// execute runs one request through the breaker. Transport errors and 5xx
// responses count as breaker failures and come back as NetworkError.
func (c *Client) execute(op string, send func() (*resty.Response, error)) (*resty.Response, error) {
	var resp *resty.Response
	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		r, err := send()
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode() >= http.StatusInternalServerError {
			return r, errServerFailure
		}
		return r, nil
	})

	switch {
	case resp != nil && resp.StatusCode() >= http.StatusInternalServerError:
		return nil, &domain.NetworkError{Op: op, StatusCode: resp.StatusCode()}
	case err != nil:
		if circuitbreaker.IsOpen(err) {
			c.logger.Warn("remote call rejected by open breaker", "op", op)
		}
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	return resp, nil
}
