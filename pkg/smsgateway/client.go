package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client submits SMS messages to the delivery provider. Acceptance means the
// provider queued the message ("sent"); the final "delivered" status arrives
// later through the delivery-report callback.
type Client struct {
	BaseURL    string
	APIKey     string
	HttpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HttpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send submits one message and returns the provider's message id.
func (c *Client) Send(ctx context.Context, phone, text string) (string, error) {
	body, err := json.Marshal(sendRequest{Phone: phone, Text: text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sms send: status %d: %s", resp.StatusCode, string(respBody))
	}
	var res sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("sms send: decode: %w", err)
	}
	if res.Error != "" {
		return "", fmt.Errorf("sms send: %s", res.Error)
	}
	return res.MessageID, nil
}

// DeliveryReport is the provider's asynchronous per-message status callback.
type DeliveryReport struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // delivered | failed
	Error     string `json:"error,omitempty"`
}

func ParseDeliveryReport(body []byte) (DeliveryReport, error) {
	var r DeliveryReport
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("delivery report: %w", err)
	}
	if r.MessageID == "" || (r.Status != "delivered" && r.Status != "failed") {
		return r, fmt.Errorf("delivery report: incomplete payload")
	}
	return r, nil
}
