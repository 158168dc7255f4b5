package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderWelcome(t *testing.T) {
	msg, err := RenderWelcome(Welcome{Email: "mai@example.com", Topics: []string{"wellness_tips", "new_features"}}, "https://chizen.app/dashboard")
	require.NoError(t, err)

	require.Equal(t, "mai@example.com", msg.To)
	require.Equal(t, WelcomeSubject, msg.Subject)
	require.Contains(t, msg.HTML, "Hi mai!")
	require.Contains(t, msg.HTML, `href="https://chizen.app/dashboard"`)
	require.Contains(t, msg.Text, "Hi mai!")
	require.Contains(t, msg.Text, "weekly wellness tips and updates about new features")
	require.NotContains(t, msg.Text, "<div")
}

func TestRenderWelcomeEscapesName(t *testing.T) {
	msg, err := RenderWelcome(Welcome{Email: "x@example.com", Name: "<script>alert(1)</script>"}, "https://chizen.app")
	require.NoError(t, err)
	require.NotContains(t, msg.HTML, "<script>")
}

func TestSendGridSend(t *testing.T) {
	var (
		auth string
		mail sgMail
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &mail)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg := NewSendGrid("SG.key", "noreply@chizen.app", "https://chizen.app/dashboard", srv.URL, time.Second)
	require.NoError(t, sg.SendWelcome(t.Context(), Welcome{Email: "lin@example.com", Name: "Lin"}))

	require.Equal(t, "Bearer SG.key", auth)
	require.Equal(t, "noreply@chizen.app", mail.From.Email)
	require.Equal(t, "lin@example.com", mail.Personalizations[0].To[0].Email)
	require.Len(t, mail.Content, 2)
	require.Equal(t, "text/plain", mail.Content[0].Type)
}

func TestSendGridReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	sg := NewSendGrid("SG.key", "noreply@chizen.app", "", srv.URL, time.Second)
	require.ErrorContains(t, sg.SendWelcome(t.Context(), Welcome{Email: "lin@example.com"}), "status 403")
}
