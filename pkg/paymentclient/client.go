/**
 * @description
 * This package provides a client for the external payment authority. The
 * funding-service never captures money itself: it asks the authority to open
 * a payment intent, relays the returned client secret to the frontend, and
 * later receives an opaque transaction reference once the payment settled.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, log, net/http, time: Standard Go libraries.
 */
package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the payment authority API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payment authority client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PaymentIntentRequest represents the payload for opening a payment intent.
type PaymentIntentRequest struct {
	Amount      int64  `json:"amount"` // in cents
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// PaymentIntent is the authority's response for a newly opened intent. The
// client secret is handed to the frontend to complete the payment.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// ErrorResponse represents an error from the payment authority API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("payment api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown payment api error"
}

// CreatePaymentIntent asks the authority to open an intent for the given
// amount and returns the intent with its client secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency, description string) (*PaymentIntent, error) {
	body, err := json.Marshal(PaymentIntentRequest{
		Amount:      amount,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/payment_intents", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create intent request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute intent request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=payment_client op=create_intent status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=payment_client op=create_intent status=%d err=%q", resp.StatusCode, errResp.Error())
		return nil, &errResp
	}

	var intent PaymentIntent
	if err := json.Unmarshal(bodyBytes, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode success response: %w", err)
	}

	return &intent, nil
}
