package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sendGridURL = "https://api.sendgrid.com/v3/mail/send"

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	client       *http.Client
	endpoint     string
	apiKey       string
	from         string
	dashboardURL string
}

// NewSendGrid constructs a SendGrid notifier. An empty endpoint uses the public API.
func NewSendGrid(apiKey, from, dashboardURL, endpoint string, timeout time.Duration) *SendGrid {
	if endpoint == "" {
		endpoint = sendGridURL
	}
	return &SendGrid{
		client:       &http.Client{Timeout: timeout},
		endpoint:     endpoint,
		apiKey:       apiKey,
		from:         from,
		dashboardURL: dashboardURL,
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// SendWelcome renders and sends the welcome message.
func (s *SendGrid) SendWelcome(ctx context.Context, w Welcome) error {
	msg, err := RenderWelcome(w, s.dashboardURL)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}

// Send delivers a rendered message.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To}}}},
		From:             sgAddress{Email: s.from, Name: "ChiZen"},
		Subject:          msg.Subject,
		Content: []sgContent{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
