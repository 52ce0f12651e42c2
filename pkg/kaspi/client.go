package kaspi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const pageSize = 100

// Client talks to the Kaspi shop API. One client serves all integrations;
// the per-shop token travels with each call.
type Client struct {
	BaseURL    string
	HttpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		// Per-request deadlines come from the caller's context; the sync job
		// bounds the whole fetch at 180s.
		HttpClient: &http.Client{},
	}
}

type OrderEntry struct {
	Code                string      `json:"code"`
	Status              string      `json:"status"`
	CustomerName        string      `json:"customer_name"`
	CustomerPhone       string      `json:"customer_phone"`
	DeliveryAddress     string      `json:"delivery_address"`
	TotalPrice          float64     `json:"total_price"`
	DeliveryCost        float64     `json:"delivery_cost"`
	DeliveryMode        string      `json:"delivery_mode"`
	PaymentMode         string      `json:"payment_mode"`
	CreationDate        int64       `json:"creation_date"` // ms since epoch
	PlannedDeliveryDate *int64      `json:"planned_delivery_date"`
	Entries             []ItemEntry `json:"entries"`
}

type ItemEntry struct {
	ProductCode string  `json:"product_code"`
	Quantity    int     `json:"quantity"`
	BasePrice   float64 `json:"base_price"`
}

type ordersPage struct {
	Orders []OrderEntry `json:"orders"`
	Total  int          `json:"total"`
}

// FetchOrders pages through all orders modified since the given time, or all
// orders when since is nil (first sync). Page order is preserved: callers
// reconcile in the order Kaspi returns.
func (c *Client) FetchOrders(ctx context.Context, token string, since *time.Time) ([]OrderEntry, error) {
	var all []OrderEntry
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("page[number]", strconv.Itoa(page))
		q.Set("page[size]", strconv.Itoa(pageSize))
		if since != nil {
			q.Set("filter[modified_after]", strconv.FormatInt(since.UnixMilli(), 10))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.BaseURL+"/shop/api/v2/orders?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Auth-Token", token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HttpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("kaspi order fetch: %w", err)
		}
		var p ordersPage
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("kaspi order fetch: status %d: %s", resp.StatusCode, string(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("kaspi order fetch: decode: %w", err)
		}
		resp.Body.Close()

		all = append(all, p.Orders...)
		if len(p.Orders) < pageSize || len(all) >= p.Total {
			break
		}
	}
	return all, nil
}

type statusPush struct {
	Code                string `json:"code"`
	Status              string `json:"status"`
	NumberOfSpace       int    `json:"number_of_space,omitempty"`
	SecurityCode        string `json:"security_code,omitempty"`
	CancellationReason  string `json:"cancellation_reason,omitempty"`
	CancellationComment string `json:"cancellation_comment,omitempty"`
}

// PushStatus forwards a locally approved transition to Kaspi. A non-2xx
// answer is an error; the caller rolls the local change back so the two
// sides never diverge.
func (c *Client) PushStatus(ctx context.Context, token, orderCode, status string, payload map[string]string) error {
	p := statusPush{Code: orderCode, Status: status}
	p.SecurityCode = payload["security_code"]
	p.CancellationReason = payload["cancellation_reason"]
	p.CancellationComment = payload["cancellation_comment"]
	if n, err := strconv.Atoi(payload["number_of_space"]); err == nil {
		p.NumberOfSpace = n
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/shop/api/v2/orders/"+orderCode+"/status", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Auth-Token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kaspi status push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("kaspi status push: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
