package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"prompt-agent/internal/domain"
)

const defaultNotifyTimeout = 30 * time.Second

type NotifyMode string

const (
	// NotifyAsync dispatches the email on a background goroutine that the
	// response path never waits for.
	NotifyAsync NotifyMode = "async"
	// NotifySync dispatches the email after the response is computed and
	// before it is returned.
	NotifySync NotifyMode = "sync"
)

type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

type ChatSender interface {
	Chat(ctx context.Context, token string, payload domain.ChatPayload) ([]byte, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, recipient, prompt string, resp domain.PromptResponse) domain.DeliveryOutcome
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type Settings struct {
	ProjectID     string
	ModelID       string
	NotifyMode    NotifyMode
	NotifyTimeout time.Duration
}

type PromptService struct {
	creds    CredentialProvider
	chat     ChatSender
	notifier Notifier

	projectID     string
	modelID       string
	mode          NotifyMode
	notifyTimeout time.Duration
	now           func() time.Time

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewPromptService(creds CredentialProvider, chat ChatSender, notifier Notifier, settings Settings) (*PromptService, error) {
	if creds == nil {
		return nil, errors.New("usecase: credential provider must not be nil")
	}
	if chat == nil {
		return nil, errors.New("usecase: chat sender must not be nil")
	}
	if notifier == nil {
		return nil, errors.New("usecase: notifier must not be nil")
	}
	if strings.TrimSpace(settings.ProjectID) == "" {
		return nil, errors.New("usecase: project id must not be empty")
	}
	if strings.TrimSpace(settings.ModelID) == "" {
		return nil, errors.New("usecase: model id must not be empty")
	}
	mode := settings.NotifyMode
	switch mode {
	case NotifyAsync, NotifySync:
	case "":
		mode = NotifyAsync
	default:
		return nil, errors.New("usecase: unknown notify mode " + string(mode))
	}
	timeout := settings.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &PromptService{
		creds:         creds,
		chat:          chat,
		notifier:      notifier,
		projectID:     settings.ProjectID,
		modelID:       settings.ModelID,
		mode:          mode,
		notifyTimeout: timeout,
		now:           time.Now,
	}, nil
}

// SendPrompt sends the prompt as-is and notifies req.Email when it is set.
func (s *PromptService) SendPrompt(ctx context.Context, req domain.PromptRequest) (domain.PromptResponse, error) {
	return s.run(ctx, req.Content, req.Content, req.Email)
}

// SendPromptWithCSV appends the rendered CSV table to the prompt sent to the
// model. The notification still echoes the prompt the user typed.
func (s *PromptService) SendPromptWithCSV(ctx context.Context, req domain.PromptRequest, csvData []byte) (domain.PromptResponse, error) {
	prompt := req.Content
	if csvContext := ExtractCSVContext(ctx, csvData); csvContext != "" {
		prompt = enrichWithCSVContext(req.Content, csvContext)
	}
	return s.run(ctx, prompt, req.Content, req.Email)
}

// Wait blocks until background notifications have finished. Notifications
// started after Wait is called run on the caller's goroutine.
func (s *PromptService) Wait() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.inflight.Wait()
}

func (s *PromptService) run(ctx context.Context, modelPrompt, echoPrompt, email string) (domain.PromptResponse, error) {
	token, err := s.creds.Token(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "credential exchange failed", "err", err)
		return domain.PromptResponse{}, newError(ErrorCredential, "token_exchange_failed", err)
	}

	body, err := s.chat.Chat(ctx, token, BuildChatPayload(modelPrompt, s.projectID, s.modelID))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok {
			slog.ErrorContext(ctx, "chat request rejected", "status", status, "err", err)
		} else {
			slog.ErrorContext(ctx, "chat request failed", "err", err)
		}
		return domain.PromptResponse{}, newError(ErrorUpstream, "chat_request_failed", err)
	}

	resp := NormalizeResponse(body, s.now)
	s.notify(ctx, email, echoPrompt, resp)
	return resp, nil
}

func (s *PromptService) notify(ctx context.Context, email, prompt string, resp domain.PromptResponse) {
	if strings.TrimSpace(email) == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if s.mode == NotifySync || !s.track() {
		s.dispatch(ctx, email, prompt, resp)
		return
	}
	go func() {
		defer s.inflight.Done()
		s.dispatch(ctx, email, prompt, resp)
	}()
}

// track registers a background notification unless Wait has begun.
func (s *PromptService) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.inflight.Add(1)
	return true
}

func (s *PromptService) dispatch(ctx context.Context, email, prompt string, resp domain.PromptResponse) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "notification panicked", "recipient", email, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	out := s.notifier.Dispatch(ctx, email, prompt, resp)
	if out.Sent {
		slog.InfoContext(ctx, "notification sent", "recipient", email, "response_id", resp.ID)
		return
	}
	slog.WarnContext(ctx, "notification not sent", "recipient", email, "err", out.Err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
