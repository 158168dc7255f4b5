package narration

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/chizen/internal/domain"
	"example.com/chizen/internal/observability"
)

const (
	// MaxBatch bounds SynthesizeAll.
	MaxBatch       = 20
	maxTextLength  = 2500
	batchWorkers   = 3
	defaultTimeout = 5 * time.Second
)

// Voice describes a selectable narrator.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Style       string `json:"style"`
}

// Voices lists the narrators offered to clients.
var Voices = []Voice{{
	ID:          "master-lee",
	Name:        "Master Lee",
	Description: "Wise Tai Chi instructor with a calm, encouraging voice",
	Style:       "calm, wise, encouraging",
}}

// Service implements domain.Narrator on top of a Speaker and a FileStore.
// A nil speaker disables synthesis and every call yields "".
type Service struct {
	speaker Speaker
	store   *FileStore
	timeout time.Duration
	log     logrus.FieldLogger
}

var _ domain.Narrator = (*Service)(nil)

// NewService constructs a Service.
func NewService(speaker Speaker, store *FileStore, timeout time.Duration, log logrus.FieldLogger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	return &Service{speaker: speaker, store: store, timeout: timeout, log: log}
}

// Enabled reports whether a speaker is configured.
func (s *Service) Enabled() bool {
	return s.speaker != nil && s.store != nil
}

// Synthesize returns a URL for spoken text, or "" when synthesis is disabled or fails.
// Identical text for the same voice is synthesised once.
func (s *Service) Synthesize(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if !s.Enabled() || text == "" {
		return ""
	}
	text = truncate(text, maxTextLength)

	key := Key(s.speaker.VoiceID(), text)
	if url, ok := s.store.Lookup(key); ok {
		return url
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	audio, err := s.speaker.Speak(ctx, text)
	if err != nil {
		observability.RecordNarrationFailure()
		s.log.WithError(err).WithField("chars", len(text)).Warn("narration failed")
		return ""
	}
	url, err := s.store.Put(key, audio)
	if err != nil {
		observability.RecordNarrationFailure()
		s.log.WithError(err).Warn("narration store failed")
		return ""
	}
	return url
}

// SynthesizeAll narrates texts concurrently and returns URLs in input order. Failures yield "".
func (s *Service) SynthesizeAll(ctx context.Context, texts []string) []string {
	urls := make([]string, len(texts))
	if !s.Enabled() {
		return urls
	}
	var g errgroup.Group
	g.SetLimit(batchWorkers)
	for i, text := range texts {
		g.Go(func() error {
			urls[i] = s.Synthesize(ctx, text)
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

// truncate cuts text to at most limit bytes without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
