package httpmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-clinical-history/internal/platform/httpclient"
	"pet-clinical-history/internal/ports/mail"
)

var (
	ErrMailNotConfigured = errors.New("mail provider not configured")
	ErrMailUpstream      = errors.New("mail provider upstream error")
)

// Config del proveedor HTTP de correo.
// BaseURL y APIKey vienen de MAIL_API_URL / MAIL_API_KEY.
type Config struct {
	BaseURL string
	APIKey  string
	From    string

	// Opcional: nombre del header donde se manda la API key.
	// Si está vacío, se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Sender implementa mail.Sender contra una API JSON genérica (POST /v1/messages).
type Sender struct {
	client       *httpclient.Client
	apiKey       string
	apiKeyHeader string
	from         string
}

func NewSender(cfg Config) (*Sender, error) {
	c, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), cfg.Timeout)
	if err != nil {
		return nil, err
	}
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	return &Sender{
		client:       c,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
		from:         strings.TrimSpace(cfg.From),
	}, nil
}

func (s *Sender) IsConfigured() bool {
	return s != nil && s.client != nil && s.client.BaseURL != "" && s.apiKey != ""
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	if !s.IsConfigured() {
		return ErrMailNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient required")
	}

	err := s.client.PostJSON(ctx, "/v1/messages", map[string]string{
		s.apiKeyHeader: s.apiKey,
	}, sendRequest{
		From:    s.from,
		To:      strings.TrimSpace(msg.To),
		Subject: msg.Subject,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMailUpstream, err)
	}
	return nil
}
