package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prompt-agent/internal/domain"
)

type fakeCreds struct {
	token string
	err   error
	calls int
}

func (f *fakeCreds) Token(_ context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeChat struct {
	body     []byte
	err      error
	calls    int
	token    string
	captured domain.ChatPayload
}

func (f *fakeChat) Chat(_ context.Context, token string, payload domain.ChatPayload) ([]byte, error) {
	f.calls++
	f.token = token
	f.captured = payload
	return f.body, f.err
}

type dispatchCall struct {
	recipient string
	prompt    string
	resp      domain.PromptResponse
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []dispatchCall
	outcome domain.DeliveryOutcome
	panics  bool
	started chan struct{}
	release chan struct{}
}

func (f *fakeNotifier) Dispatch(_ context.Context, recipient, prompt string, resp domain.PromptResponse) domain.DeliveryOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, dispatchCall{recipient: recipient, prompt: prompt, resp: resp})
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("smtp exploded")
	}
	return f.outcome
}

func (f *fakeNotifier) Calls() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchCall(nil), f.calls...)
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return "upstream status" }
func (e *statusErr) HTTPStatusCode() int { return e.code }

const chatBody = `{
	"id": "chat-123",
	"model_id": "ibm/granite-3-8b-instruct",
	"created": 1729000000,
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "X is a letter."}}]
}`

func newTestService(t *testing.T, creds CredentialProvider, chat ChatSender, n Notifier, mode NotifyMode) *PromptService {
	t.Helper()
	svc, err := NewPromptService(creds, chat, n, Settings{
		ProjectID:  "project-1",
		ModelID:    "ibm/granite-3-8b-instruct",
		NotifyMode: mode,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func expectServiceError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewPromptService_ValidatesDependencies(t *testing.T) {
	s := Settings{ProjectID: "p", ModelID: "m"}

	_, err := NewPromptService(nil, &fakeChat{}, &fakeNotifier{}, s)
	require.Error(t, err)

	_, err = NewPromptService(&fakeCreds{}, nil, &fakeNotifier{}, s)
	require.Error(t, err)

	_, err = NewPromptService(&fakeCreds{}, &fakeChat{}, nil, s)
	require.Error(t, err)

	_, err = NewPromptService(&fakeCreds{}, &fakeChat{}, &fakeNotifier{}, Settings{ModelID: "m"})
	require.Error(t, err)

	_, err = NewPromptService(&fakeCreds{}, &fakeChat{}, &fakeNotifier{}, Settings{ProjectID: "p"})
	require.Error(t, err)

	_, err = NewPromptService(&fakeCreds{}, &fakeChat{}, &fakeNotifier{}, Settings{ProjectID: "p", ModelID: "m", NotifyMode: "later"})
	require.Error(t, err)

	svc, err := NewPromptService(&fakeCreds{}, &fakeChat{}, &fakeNotifier{}, s)
	require.NoError(t, err)
	require.Equal(t, NotifyAsync, svc.mode)
	require.Equal(t, defaultNotifyTimeout, svc.notifyTimeout)
}

func TestSendPrompt_HappyPath_NoEmail(t *testing.T) {
	creds := &fakeCreds{token: "bearer-abc"}
	chat := &fakeChat{body: []byte(chatBody)}
	n := &fakeNotifier{}
	svc := newTestService(t, creds, chat, n, NotifySync)

	resp, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "What is X?"})
	require.NoError(t, err)
	require.Equal(t, "X is a letter.", resp.Content)
	require.Equal(t, "ibm/granite-3-8b-instruct", resp.ModelID)
	require.Equal(t, "chat-123", resp.ID)
	require.Equal(t, int64(1729000000), resp.CreatedAt)

	require.Equal(t, 1, creds.calls)
	require.Equal(t, "bearer-abc", chat.token)
	require.Equal(t, "What is X?", chat.captured.Messages[1].Parts[0].Text)
	require.Equal(t, "project-1", chat.captured.ProjectID)
	require.Empty(t, n.Calls())
}

func TestSendPrompt_CredentialIsAcquiredPerCall(t *testing.T) {
	creds := &fakeCreds{token: "t"}
	svc := newTestService(t, creds, &fakeChat{body: []byte(chatBody)}, &fakeNotifier{}, NotifySync)

	for i := 0; i < 3; i++ {
		_, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, creds.calls)
}

func TestSendPrompt_BlankEmailSkipsNotifier(t *testing.T) {
	for _, email := range []string{"", "   ", "\t"} {
		n := &fakeNotifier{}
		svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifySync)

		_, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: email})
		require.NoError(t, err)
		require.Empty(t, n.Calls(), "email=%q", email)
	}
}

func TestSendPrompt_RejectedEmailDoesNotChangeResponse(t *testing.T) {
	baseline := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, &fakeNotifier{}, NotifySync)
	want, err := baseline.SendPrompt(context.Background(), domain.PromptRequest{Content: "What is X?"})
	require.NoError(t, err)

	n := &fakeNotifier{outcome: domain.DeliveryOutcome{Sent: false, Err: errors.New("invalid recipient")}}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifySync)
	got, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "What is X?", Email: "not-an-email"})
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Len(t, n.Calls(), 1)
}

func TestSendPrompt_ValidEmailNotifiesWithResponse(t *testing.T) {
	n := &fakeNotifier{outcome: domain.DeliveryOutcome{Sent: true}}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifySync)

	resp, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "What is X?", Email: "user@example.com"})
	require.NoError(t, err)

	calls := n.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "user@example.com", calls[0].recipient)
	require.Equal(t, "What is X?", calls[0].prompt)
	require.Equal(t, resp, calls[0].resp)
}

func TestSendPrompt_CredentialFailureIsFatal(t *testing.T) {
	chat := &fakeChat{body: []byte(chatBody)}
	n := &fakeNotifier{}
	svc := newTestService(t, &fakeCreds{err: errors.New("iam down")}, chat, n, NotifySync)

	resp, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: "user@example.com"})
	expectServiceError(t, err, ErrorCredential, "token_exchange_failed")
	require.Contains(t, err.Error(), "iam down")
	require.Equal(t, domain.PromptResponse{}, resp)
	require.Zero(t, chat.calls)
	require.Empty(t, n.Calls())
}

func TestSendPrompt_ChatFailureIsFatalAndSkipsNotifier(t *testing.T) {
	cases := []error{
		errors.New("connection reset"),
		&statusErr{code: 500},
	}
	for _, chatErr := range cases {
		n := &fakeNotifier{}
		svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{err: chatErr}, n, NotifySync)

		_, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "What is X?", Email: "user@example.com"})
		expectServiceError(t, err, ErrorUpstream, "chat_request_failed")
		require.ErrorIs(t, err, chatErr)
		require.Empty(t, n.Calls())
	}
}

func TestSendPrompt_EmptyBodyYieldsSentinel(t *testing.T) {
	n := &fakeNotifier{outcome: domain.DeliveryOutcome{Sent: true}}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: nil}, n, NotifySync)

	resp, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: "user@example.com"})
	require.NoError(t, err)
	require.Equal(t, domain.PromptResponse{Content: "Sem resposta", ModelID: "unknown", ID: "", CreatedAt: 1700000000000}, resp)
	require.Len(t, n.Calls(), 1)
}

func TestSendPromptWithCSV_EnrichesModelPromptButEchoesOriginal(t *testing.T) {
	chat := &fakeChat{body: []byte(chatBody)}
	n := &fakeNotifier{outcome: domain.DeliveryOutcome{Sent: true}}
	svc := newTestService(t, &fakeCreds{token: "t"}, chat, n, NotifySync)

	csvData := []byte("A,B\nx,y\n")
	_, err := svc.SendPromptWithCSV(context.Background(), domain.PromptRequest{Content: "Summarize", Email: "user@example.com"}, csvData)
	require.NoError(t, err)

	sent := chat.captured.Messages[1].Parts[0].Text
	require.Equal(t, "Summarize\n\n**CSV Context Data:**\n| A | B | \n| --- | --- | \n| x | y | \n", sent)

	calls := n.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Summarize", calls[0].prompt)
}

func TestSendPromptWithCSV_EmptyUploadKeepsPrompt(t *testing.T) {
	for _, data := range [][]byte{nil, {}} {
		chat := &fakeChat{body: []byte(chatBody)}
		svc := newTestService(t, &fakeCreds{token: "t"}, chat, &fakeNotifier{}, NotifySync)

		_, err := svc.SendPromptWithCSV(context.Background(), domain.PromptRequest{Content: "Summarize"}, data)
		require.NoError(t, err)
		require.Equal(t, "Summarize", chat.captured.Messages[1].Parts[0].Text)
	}
}

func TestSendPromptWithCSV_ParseErrorIsEmbedded(t *testing.T) {
	chat := &fakeChat{body: []byte(chatBody)}
	svc := newTestService(t, &fakeCreds{token: "t"}, chat, &fakeNotifier{}, NotifySync)

	_, err := svc.SendPromptWithCSV(context.Background(), domain.PromptRequest{Content: "Summarize"}, []byte("a,\"b\nc"))
	require.NoError(t, err)
	sent := chat.captured.Messages[1].Parts[0].Text
	require.True(t, strings.HasPrefix(sent, "Summarize\n\n**CSV Context Data:**\nError parsing CSV file: "), sent)
}

func TestSendPrompt_AsyncNotificationDoesNotBlock(t *testing.T) {
	n := &fakeNotifier{
		outcome: domain.DeliveryOutcome{Sent: true},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifyAsync)

	type result struct {
		resp domain.PromptResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: "user@example.com"})
		done <- result{resp: resp, err: err}
	}()

	var resp domain.PromptResponse
	select {
	case r := <-done:
		require.NoError(t, r.err)
		resp = r.resp
	case <-time.After(2 * time.Second):
		t.Fatal("SendPrompt waited for the notifier")
	}

	select {
	case <-n.started:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never invoked")
	}

	close(n.release)
	svc.Wait()

	calls := n.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, resp, calls[0].resp)
}

func TestSendPrompt_SyncNotificationBlocks(t *testing.T) {
	n := &fakeNotifier{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifySync)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: "user@example.com"})
	}()

	<-n.started
	select {
	case <-done:
		t.Fatal("SendPrompt returned before the notifier finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(n.release)
	<-done
}

func TestSendPrompt_AfterWaitNotifiesInline(t *testing.T) {
	n := &fakeNotifier{outcome: domain.DeliveryOutcome{Sent: true}}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifyAsync)
	svc.Wait()

	_, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: "user@example.com"})
	require.NoError(t, err)
	require.Len(t, n.Calls(), 1)
	svc.Wait()
}

func TestSendPrompt_AsyncNotificationSurvivesCanceledRequest(t *testing.T) {
	n := &fakeNotifier{outcome: domain.DeliveryOutcome{Sent: true}}
	svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, NotifyAsync)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.SendPrompt(ctx, domain.PromptRequest{Content: "hi", Email: "user@example.com"})
	require.NoError(t, err)
	cancel()
	svc.Wait()
	require.Len(t, n.Calls(), 1)
}

func TestSendPrompt_NotifierPanicIsContained(t *testing.T) {
	for _, mode := range []NotifyMode{NotifySync, NotifyAsync} {
		n := &fakeNotifier{panics: true}
		svc := newTestService(t, &fakeCreds{token: "t"}, &fakeChat{body: []byte(chatBody)}, n, mode)

		resp, err := svc.SendPrompt(context.Background(), domain.PromptRequest{Content: "hi", Email: "user@example.com"})
		require.NoError(t, err, "mode=%s", mode)
		require.Equal(t, "X is a letter.", resp.Content)
		svc.Wait()
		require.Len(t, n.Calls(), 1)
	}
}

func TestUpstreamStatusCode(t *testing.T) {
	code, ok := upstreamStatusCode(&statusErr{code: 503})
	require.True(t, ok)
	require.Equal(t, 503, code)

	_, ok = upstreamStatusCode(errors.New("plain"))
	require.False(t, ok)
}
