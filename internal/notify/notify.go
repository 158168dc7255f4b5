// Package notify sends transactional e-mail.
package notify

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFiles embed.FS

var welcomeTemplate = template.Must(template.ParseFS(templateFiles, "templates/welcome.html"))

// WelcomeSubject is the subject line of the welcome message.
const WelcomeSubject = "Welcome to ChiZen Fitness!"

// Welcome addresses a new newsletter subscriber.
type Welcome struct {
	Email  string
	Name   string
	Topics []string
}

// Notifier delivers messages to users.
type Notifier interface {
	SendWelcome(ctx context.Context, w Welcome) error
}

// Message is a rendered e-mail with HTML and plain text bodies.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

var topicLabels = map[string]string{
	"wellness_tips": "weekly wellness tips",
	"new_features":  "updates about new features",
	"challenges":    "news about community challenges",
}

// RenderWelcome builds the welcome message. The plain text part is derived from the HTML.
func RenderWelcome(w Welcome, dashboardURL string) (Message, error) {
	display := strings.TrimSpace(w.Name)
	if display == "" {
		display, _, _ = strings.Cut(w.Email, "@")
	}

	var labels []string
	for _, t := range w.Topics {
		if l, ok := topicLabels[t]; ok {
			labels = append(labels, l)
		}
	}
	summary := "occasional ChiZen news"
	if len(labels) > 0 {
		summary = strings.Join(labels, " and ")
	}

	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, map[string]string{
		"DisplayName":  display,
		"DashboardURL": dashboardURL,
		"TopicSummary": summary,
	})
	if err != nil {
		return Message{}, err
	}

	text, err := md.NewConverter("", true, nil).ConvertString(buf.String())
	if err != nil {
		return Message{}, err
	}
	return Message{To: w.Email, Subject: WelcomeSubject, HTML: buf.String(), Text: text}, nil
}

// LogNotifier records messages in the log instead of sending them.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// SendWelcome logs the recipient.
func (n LogNotifier) SendWelcome(_ context.Context, w Welcome) error {
	n.Log.WithField("email", w.Email).Info("mail delivery not configured, skipping welcome e-mail")
	return nil
}
