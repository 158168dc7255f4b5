package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"example.com/chizen/internal/events"
	"example.com/chizen/internal/notify"
)

func framed(schemaID int, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func record(eventType, payload string, offset int64) kafka.Message {
	meta := events.Catalog[eventType]
	return kafka.Message{
		Topic:  meta.Topic,
		Offset: offset,
		Time:   time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
		Key:    []byte("user-1"),
		Value:  framed(42, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte("17")},
			{Key: "schema_subject", Value: []byte(meta.SchemaSubject)},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"routine_id":"r1","user_id":"user-1"}`
	reader := &stubReader{messages: []kafka.Message{record(events.TypeRoutineCompleted, payload, 10)}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(quietLogger())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeRoutineCompleted, handler.last.EventType)
	require.Equal(t, "17", handler.last.EventID)
	require.Equal(t, "user-1", handler.last.Key)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{record(events.TypeUserRegistered, `{}`, 20)}}
	handler := &stubHandler{err: errors.New("boom")}

	before := testutil.ToFloat64(consumedEvents.WithLabelValues("chizen_user_events", events.TypeUserRegistered, outcomeFailed))
	err := NewProcessor(reader, handler, WithLogger(quietLogger())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(consumedEvents.WithLabelValues("chizen_user_events", events.TypeUserRegistered, outcomeFailed)), 0.0001)
}

func TestProcessorCommitsUndecodableRecords(t *testing.T) {
	noHeader := record(events.TypeUserRegistered, `{}`, 1)
	noHeader.Headers = nil
	short := record(events.TypeUserRegistered, `{}`, 2)
	short.Value = []byte{0, 1}

	reader := &stubReader{messages: []kafka.Message{noHeader, short}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(quietLogger())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker gone")},
		messages:  []kafka.Message{record(events.TypeAdminBroadcast, `{}`, 3)},
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(quietLogger()), WithFetchBackoff(time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestRouterDispatchesByEventType(t *testing.T) {
	subscribed := &stubHandler{}
	broadcast := &stubHandler{}
	audit := &stubHandler{}
	router := NewRouter().
		On(events.TypeNewsletterSubscribed, subscribed).
		On(events.TypeAdminBroadcast, broadcast)
	h := Chain(audit, router)

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeNewsletterSubscribed}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeRoutineCompleted}))

	require.Equal(t, 2, audit.calls)
	require.Equal(t, 1, subscribed.calls)
	require.Zero(t, broadcast.calls)

	failing := Chain(&stubHandler{err: errors.New("down")}, audit)
	require.Error(t, failing.Handle(ctx, Message{}))
	require.Equal(t, 2, audit.calls)
}

func TestWelcomeHandlerSendsWelcome(t *testing.T) {
	n := &stubNotifier{}
	h := NewWelcomeHandler(n, quietLogger())

	payload := `{"email":"ana@example.com","name":"Ana","topics":["wellness_tips"],"subscribed_at":"2025-06-10T08:00:00Z"}`
	require.NoError(t, h.Handle(context.Background(), Message{EventType: events.TypeNewsletterSubscribed, Payload: []byte(payload)}))
	require.Equal(t, []notify.Welcome{{Email: "ana@example.com", Name: "Ana", Topics: []string{"wellness_tips"}}}, n.sent)

	require.Error(t, h.Handle(context.Background(), Message{EventType: events.TypeNewsletterSubscribed, Payload: []byte(`{"name":"x"}`)}))
}

func TestWelcomeHandlerSwallowsDeliveryFailure(t *testing.T) {
	h := NewWelcomeHandler(&stubNotifier{err: errors.New("smtp down")}, quietLogger())
	before := testutil.ToFloat64(notificationFailures.WithLabelValues(events.TypeNewsletterSubscribed))

	err := h.Handle(context.Background(), Message{EventType: events.TypeNewsletterSubscribed, Payload: []byte(`{"email":"a@b.c"}`)})
	require.NoError(t, err)
	require.InDelta(t, before+1, testutil.ToFloat64(notificationFailures.WithLabelValues(events.TypeNewsletterSubscribed)), 0.0001)
}

func TestBroadcastHandlerRejectsGarbage(t *testing.T) {
	h := NewBroadcastHandler(quietLogger())
	require.NoError(t, h.Handle(context.Background(), Message{EventType: events.TypeAdminBroadcast, Payload: []byte(`{"broadcast_id":"b1","message":"hello"}`)}))
	require.Error(t, h.Handle(context.Background(), Message{EventType: events.TypeAdminBroadcast, Payload: []byte(`not json`)}))
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(context.Context, ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type stubNotifier struct {
	err  error
	sent []notify.Welcome
}

func (n *stubNotifier) SendWelcome(_ context.Context, w notify.Welcome) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, w)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
