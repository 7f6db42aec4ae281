package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"time"
)

var ErrMissingRecipient = errors.New("email recipient is empty")

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one email. The returned string is the provider's
// response, kept for the audit log.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// HTTPSender posts messages to a transactional email API with a bearer key.
type HTTPSender struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func NewHTTPSender(endpoint, apiKey, from string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSender{endpoint: endpoint, apiKey: apiKey, from: from, client: client}
}

type httpPayload struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrMissingRecipient
	}

	body, err := json.Marshal(httpPayload{From: s.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return string(respBody), fmt.Errorf("email provider returned %d: %s", resp.StatusCode, respBody)
	}
	return string(respBody), nil
}

// SMTPSender handles email sending via SMTP. Used against local relays
// such as MailHog in development.
type SMTPSender struct {
	host string
	port string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, from: from}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrMissingRecipient
	}

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, msg.To, msg.Subject, msg.HTML)
	addr := net.JoinHostPort(s.host, s.port)

	// net/smtp has no context support; run it aside so cancellation still
	// returns promptly.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, nil, s.from, []string{msg.To}, []byte(raw))
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return "250 queued", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
