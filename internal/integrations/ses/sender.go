package ses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"prompt-agent/internal/notify"
)

const charset = "UTF-8"

// sesAPI is the subset of *sesv2.Client used by Sender.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender delivers notification emails through Amazon SES.
type Sender struct {
	api              sesAPI
	configurationSet string
}

type Option func(*Sender)

// WithConfigurationSet tags outgoing mail with an SES configuration set.
func WithConfigurationSet(name string) Option {
	return func(s *Sender) {
		s.configurationSet = strings.TrimSpace(name)
	}
}

func New(api sesAPI, opts ...Option) (*Sender, error) {
	if api == nil {
		return nil, errors.New("ses: api must not be nil")
	}
	s := &Sender{api: api}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("ses: recipient is required")
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
				},
			},
		},
	}
	if s.configurationSet != "" {
		in.ConfigurationSetName = aws.String(s.configurationSet)
	}
	if _, err := s.api.SendEmail(ctx, in); err != nil {
		return fmt.Errorf("ses: send email to %q: %w", msg.To, err)
	}
	return nil
}
