package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prompt-agent/internal/domain"
)

type fakeSender struct {
	sent   []Message
	err    error
	panics bool
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	if f.panics {
		panic("transport exploded")
	}
	f.sent = append(f.sent, msg)
	return f.err
}

type recordedDelivery struct {
	recipient string
	resp      domain.PromptResponse
	out       domain.DeliveryOutcome
}

type fakeRecorder struct {
	records []recordedDelivery
	err     error
}

func (f *fakeRecorder) RecordDelivery(_ context.Context, recipient string, resp domain.PromptResponse, out domain.DeliveryOutcome) error {
	f.records = append(f.records, recordedDelivery{recipient: recipient, resp: resp, out: out})
	return f.err
}

func sampleResponse() domain.PromptResponse {
	return domain.PromptResponse{Content: "**bold** answer", ModelID: "ibm/granite", ID: "resp-1", CreatedAt: 1729000000}
}

func newTestDispatcher(t *testing.T, s Sender, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(s, opts...)
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 10, 15, 9, 5, 7, 0, time.UTC) }
	return d
}

func TestNewDispatcher_NilSender(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err)
}

func TestValidEmail(t *testing.T) {
	valid := []string{"user@example.com", "first.last+tag@sub.example.org", "a_b-c@x"}
	for _, addr := range valid {
		require.True(t, ValidEmail(addr), "addr=%q", addr)
	}
	invalid := []string{"", "   ", "not-an-email", "@example.com", "user@", "us er@example.com", " user@example.com"}
	for _, addr := range invalid {
		require.False(t, ValidEmail(addr), "addr=%q", addr)
	}
}

func TestDispatch_InvalidRecipientIsNoop(t *testing.T) {
	for _, addr := range []string{"", "   ", "not-an-email"} {
		s := &fakeSender{}
		rec := &fakeRecorder{}
		d := newTestDispatcher(t, s, WithRecorder(rec))

		out := d.Dispatch(context.Background(), addr, "prompt", sampleResponse())
		require.False(t, out.Sent)
		require.ErrorIs(t, out.Err, ErrInvalidRecipient)
		require.Empty(t, s.sent)
		require.Empty(t, rec.records)
	}
}

func TestDispatch_Success(t *testing.T) {
	s := &fakeSender{}
	d := newTestDispatcher(t, s)

	out := d.Dispatch(context.Background(), "user@example.com", "What is <X>?", sampleResponse())
	require.True(t, out.Sent)
	require.NoError(t, out.Err)
	require.Len(t, s.sent, 1)

	msg := s.sent[0]
	require.Equal(t, "user@example.com", msg.To)
	require.Equal(t, "watsonx-bot@noreply.com", msg.From)
	require.Equal(t, "Watsonx Response - Your Prompt", msg.Subject)
	require.Contains(t, msg.HTML, "What is &lt;X&gt;?")
	require.Contains(t, msg.HTML, "**bold** answer")
	require.Contains(t, msg.HTML, "15/10/2024 09:05:07")
}

func TestDispatch_MultipleRecipients(t *testing.T) {
	s := &fakeSender{}
	d := newTestDispatcher(t, s)

	require.True(t, d.Dispatch(context.Background(), "user1@example.com", "p", sampleResponse()).Sent)
	require.True(t, d.Dispatch(context.Background(), "user2@example.com", "p", sampleResponse()).Sent)
	require.Len(t, s.sent, 2)
}

func TestDispatch_SendErrorIsSwallowed(t *testing.T) {
	rec := &fakeRecorder{}
	d := newTestDispatcher(t, &fakeSender{err: errors.New("ses throttled")}, WithRecorder(rec))

	out := d.Dispatch(context.Background(), "user@example.com", "p", sampleResponse())
	require.False(t, out.Sent)
	require.ErrorContains(t, out.Err, "ses throttled")
	require.Len(t, rec.records, 1)
	require.False(t, rec.records[0].out.Sent)
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	rec := &fakeRecorder{}
	d := newTestDispatcher(t, &fakeSender{panics: true}, WithRecorder(rec))

	var out domain.DeliveryOutcome
	require.NotPanics(t, func() {
		out = d.Dispatch(context.Background(), "user@example.com", "p", sampleResponse())
	})
	require.False(t, out.Sent)
	require.ErrorContains(t, out.Err, "transport exploded")
	require.Len(t, rec.records, 1)
}

func TestDispatch_RecordsSuccessAndIgnoresRecorderFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("dynamodb down")}
	d := newTestDispatcher(t, &fakeSender{}, WithRecorder(rec))

	out := d.Dispatch(context.Background(), "user@example.com", "p", sampleResponse())
	require.True(t, out.Sent)
	require.Len(t, rec.records, 1)
	require.Equal(t, "user@example.com", rec.records[0].recipient)
	require.Equal(t, "resp-1", rec.records[0].resp.ID)
	require.True(t, rec.records[0].out.Sent)
}
