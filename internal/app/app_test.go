package app

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"prompt-agent/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		APIKey:         "key",
		ProjectID:      "proj",
		ModelID:        "ibm/granite-13b-chat-v2",
		Endpoint:       "https://us-south.ml.cloud.ibm.com",
		IAMTokenURL:    config.DefaultIAMTokenURL,
		HTTPTimeout:    time.Second,
		NotifyMode:     "sync",
		NotifyTimeout:  time.Second,
		MaxUploadBytes: 1024,
	}
}

func TestNewPromptService_Wires(t *testing.T) {
	cfg := validConfig()
	cfg.DeliveryLogTable = "deliveries"
	cfg.SESConfigurationSet = "prompt-agent"

	svc, err := NewPromptService(context.Background(), cfg, aws.Config{Region: "us-east-1"})
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestNewPromptService_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.ProjectID = ""

	_, err := NewPromptService(context.Background(), cfg, aws.Config{Region: "us-east-1"})
	require.ErrorContains(t, err, "WATSONX_PROJECT_ID")
}
