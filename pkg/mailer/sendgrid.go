// Package mailer delivers transactional email through the SendGrid v3 mail send API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

const (
	defaultBaseURL     = "https://api.sendgrid.com"
	sendPath           = "/v3/mail/send"
	defaultTimeout     = 15 * time.Second
	errorBodyReadLimit = 1024
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Message is one outgoing email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender is the delivery surface the dispatch job depends on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SendGrid struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	defaultFrom string
}

type Option func(*SendGrid)

func WithHTTPClient(client *http.Client) Option {
	return func(s *SendGrid) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(s *SendGrid) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

func NewSendGrid(apiKey, defaultFrom string, opts ...Option) (*SendGrid, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return nil, errAPIKeyRequired
	}
	s := &SendGrid{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     defaultBaseURL,
		apiKey:      trimmed,
		defaultFrom: strings.TrimSpace(defaultFrom),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []struct {
		To []sendGridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendGridAddress   `json:"from"`
	Subject string            `json:"subject"`
	Content []sendGridContent `json:"content"`
}

// Send posts msg to SendGrid. Client-side rejections are validation errors and are
// not worth retrying; transport and 5xx failures are dependency errors.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if s == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid not configured")
	}
	body, err := s.buildRequest(msg)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal sendgrid request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build sendgrid request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute sendgrid request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	msgBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msgBody)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "sendgrid unavailable")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "sendgrid rejected message")
	}
}

func (s *SendGrid) buildRequest(msg Message) (*sendGridRequest, error) {
	to, err := mail.ParseAddress(strings.TrimSpace(msg.To))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient address")
	}
	fromRaw := strings.TrimSpace(msg.From)
	if fromRaw == "" {
		fromRaw = s.defaultFrom
	}
	from, err := mail.ParseAddress(fromRaw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sender address")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	if strings.TrimSpace(msg.HTMLBody) == "" && strings.TrimSpace(msg.TextBody) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email body is required")
	}

	req := &sendGridRequest{
		From:    sendGridAddress{Email: from.Address, Name: from.Name},
		Subject: msg.Subject,
	}
	req.Personalizations = make([]struct {
		To []sendGridAddress `json:"to"`
	}, 1)
	req.Personalizations[0].To = []sendGridAddress{{Email: to.Address, Name: to.Name}}

	// SendGrid requires text/plain before text/html when both are present.
	if msg.TextBody != "" {
		req.Content = append(req.Content, sendGridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		req.Content = append(req.Content, sendGridContent{Type: "text/html", Value: msg.HTMLBody})
	}
	return req, nil
}
