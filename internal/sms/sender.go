// Package sms delivers text messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrMissingNumber = errors.New("sms recipient number is empty")

type Sender interface {
	Send(ctx context.Context, number, message string) (string, error)
}

// HTTPSender posts messages with the key in the X-API-Key header.
type HTTPSender struct {
	endpoint string
	apiKey   string
	senderID string
	client   *http.Client
}

func NewHTTPSender(endpoint, apiKey, senderID string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSender{endpoint: endpoint, apiKey: apiKey, senderID: senderID, client: client}
}

type payload struct {
	SenderID string `json:"sender_id"`
	Message  string `json:"message"`
	Number   string `json:"number"`
}

func (s *HTTPSender) Send(ctx context.Context, number, message string) (string, error) {
	if number == "" {
		return "", ErrMissingNumber
	}

	body, err := json.Marshal(payload{SenderID: s.senderID, Message: message, Number: number})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return string(respBody), fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, respBody)
	}
	return string(respBody), nil
}
