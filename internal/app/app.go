package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"prompt-agent/internal/config"
	"prompt-agent/internal/integrations/iam"
	"prompt-agent/internal/integrations/paramstore"
	"prompt-agent/internal/integrations/ses"
	"prompt-agent/internal/integrations/watsonx"
	"prompt-agent/internal/notify"
	"prompt-agent/internal/repository"
	"prompt-agent/internal/usecase"
)

// NewPromptService wires the prompt pipeline from cfg. AWS clients are
// created from awsCfg; the delivery log is enabled only when a table is set.
func NewPromptService(ctx context.Context, cfg config.Config, awsCfg aws.Config) (*usecase.PromptService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	secrets, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	apiKey, err := cfg.ResolveAPIKey(ctx, secrets)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	creds, err := iam.NewClient(apiKey, iam.WithTokenURL(cfg.IAMTokenURL), iam.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("app: create IAM client: %w", err)
	}
	chat, err := watsonx.NewClient(cfg.Endpoint, watsonx.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("app: create watsonx client: %w", err)
	}

	var sesOpts []ses.Option
	if cfg.SESConfigurationSet != "" {
		sesOpts = append(sesOpts, ses.WithConfigurationSet(cfg.SESConfigurationSet))
	}
	sender, err := ses.New(awssesv2.NewFromConfig(awsCfg), sesOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create SES sender: %w", err)
	}

	var notifyOpts []notify.Option
	if cfg.DeliveryLogTable != "" {
		deliveries, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.DeliveryLogTable)
		if err != nil {
			return nil, fmt.Errorf("app: create delivery log: %w", err)
		}
		notifyOpts = append(notifyOpts, notify.WithRecorder(deliveries))
	}
	dispatcher, err := notify.NewDispatcher(sender, notifyOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create dispatcher: %w", err)
	}

	return usecase.NewPromptService(creds, chat, dispatcher, usecase.Settings{
		ProjectID:     cfg.ProjectID,
		ModelID:       cfg.ModelID,
		NotifyMode:    usecase.NotifyMode(cfg.NotifyMode),
		NotifyTimeout: cfg.NotifyTimeout,
	})
}
