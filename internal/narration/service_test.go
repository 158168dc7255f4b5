package narration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type countingSpeaker struct {
	calls atomic.Int32
	fail  string
}

func (c *countingSpeaker) Speak(_ context.Context, text string) ([]byte, error) {
	c.calls.Add(1)
	if text == c.fail {
		return nil, errors.New("upstream unavailable")
	}
	return []byte("ID3" + text), nil
}

func (c *countingSpeaker) VoiceID() string { return "voice-1" }

func TestSynthesizeStoresContentAddressedAudio(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/")
	require.NoError(t, err)
	speaker := &countingSpeaker{}
	svc := NewService(speaker, store, time.Second, nil)

	url := svc.Synthesize(t.Context(), "  Breathe in slowly. ")
	key := Key("voice-1", "Breathe in slowly.")
	require.Equal(t, "http://localhost:8080/media/"+key, url)

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	require.Equal(t, "ID3Breathe in slowly.", string(data))

	require.Equal(t, url, svc.Synthesize(t.Context(), "Breathe in slowly."))
	require.Equal(t, int32(1), speaker.calls.Load(), "cached audio must not be synthesised again")
}

func TestSynthesizeAllKeepsOrderAndSwallowsFailures(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://media.test")
	require.NoError(t, err)
	svc := NewService(&countingSpeaker{fail: "bad"}, store, time.Second, nil)

	urls := svc.SynthesizeAll(t.Context(), []string{"one", "bad", "three"})
	require.Len(t, urls, 3)
	require.True(t, strings.HasSuffix(urls[0], Key("voice-1", "one")))
	require.Empty(t, urls[1])
	require.True(t, strings.HasSuffix(urls[2], Key("voice-1", "three")))
}

type recordingSpeaker struct {
	text string
}

func (r *recordingSpeaker) Speak(_ context.Context, text string) ([]byte, error) {
	r.text = text
	return []byte("ID3"), nil
}

func (r *recordingSpeaker) VoiceID() string { return "voice-1" }

func TestSynthesizeTruncatesOnRuneBoundary(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	speaker := &recordingSpeaker{}
	svc := NewService(speaker, store, time.Second, nil)

	// Thai letters are three bytes each, so the byte limit falls inside a rune.
	text := strings.Repeat("สวัสดี", maxTextLength/9+1) + "x"
	require.NotEmpty(t, svc.Synthesize(t.Context(), text))
	require.True(t, utf8.ValidString(speaker.text))
	require.LessOrEqual(t, len(speaker.text), maxTextLength)
	require.Greater(t, len(speaker.text), maxTextLength-utf8.UTFMax)
	require.True(t, strings.HasPrefix(text, speaker.text))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "ab", truncate("abแ", 4))
	require.Equal(t, "abแ", truncate("abแ", 5))
	require.Equal(t, "", truncate("แ", 2))
}

func TestDisabledServiceReturnsEmptyURLs(t *testing.T) {
	svc := NewService(nil, nil, 0, nil)
	require.False(t, svc.Enabled())
	require.Empty(t, svc.Synthesize(t.Context(), "hello"))
	require.Equal(t, []string{"", ""}, svc.SynthesizeAll(t.Context(), []string{"a", "b"}))
}

func TestElevenLabsSpeak(t *testing.T) {
	var (
		path, key, accept string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("xi-api-key")
		accept = r.Header.Get("Accept")
		_, _ = io.Copy(io.Discard, r.Body)
		if strings.Contains(path, "broken") {
			http.Error(w, "quota exceeded", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client := NewElevenLabs("xi-key", "", srv.URL, time.Second)
	audio, err := client.Speak(t.Context(), "hello")
	require.NoError(t, err)
	require.Equal(t, "mp3-bytes", string(audio))
	require.Equal(t, "/text-to-speech/"+defaultVoiceID, path)
	require.Equal(t, "xi-key", key)
	require.Equal(t, "audio/mpeg", accept)

	broken := NewElevenLabs("xi-key", "broken", srv.URL, time.Second)
	_, err = broken.Speak(t.Context(), "hello")
	require.ErrorContains(t, err, "status 401")
}
