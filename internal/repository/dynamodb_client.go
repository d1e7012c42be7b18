package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"prompt-agent/internal/domain"
)

const (
	pkPrefixResponse = "RESP#"
	skPrefixDelivery = "DELIVERY#"
	noResponseID     = "UNKNOWN"
	statusSent       = "sent"
	statusFailed     = "failed"
	ttlDuration      = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes delivery audit records to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// responsePK returns the partition key grouping deliveries of one response.
func responsePK(responseID string) string {
	if strings.TrimSpace(responseID) == "" {
		responseID = noResponseID
	}
	return pkPrefixResponse + responseID
}

// deliverySK returns a sort key ordered by attempt time.
func deliverySK(ts time.Time, id string) string {
	return skPrefixDelivery + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// RecordDelivery persists the outcome of one notification attempt.
func (c *Client) RecordDelivery(ctx context.Context, recipient string, resp domain.PromptResponse, out domain.DeliveryOutcome) error {
	rec := NewDeliveryRecord(c.now(), recipient, resp, out)
	if err := c.PutDelivery(ctx, rec); err != nil {
		return fmt.Errorf("repository: RecordDelivery: %w", err)
	}
	return nil
}

// PutDelivery writes rec, refusing to overwrite an existing item.
func (c *Client) PutDelivery(ctx context.Context, rec domain.DeliveryRecord) error {
	if rec.PK == "" || rec.SK == "" {
		return errors.New("repository: PutDelivery: PK and SK are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                deliveryItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: PutDelivery: %w", err)
	}
	return nil
}

// NewDeliveryRecord constructs a DeliveryRecord with keys and TTL derived from now.
func NewDeliveryRecord(now time.Time, recipient string, resp domain.PromptResponse, out domain.DeliveryOutcome) domain.DeliveryRecord {
	id := uuid.NewString()
	status := statusFailed
	if out.Sent {
		status = statusSent
	}
	var errText string
	if out.Err != nil {
		errText = out.Err.Error()
	}
	return domain.DeliveryRecord{
		PK:          responsePK(resp.ID),
		SK:          deliverySK(now, id),
		ID:          id,
		ResponseID:  resp.ID,
		ModelID:     resp.ModelID,
		Recipient:   recipient,
		Status:      status,
		Error:       errText,
		AttemptedAt: now.UTC().Format(time.RFC3339),
		TTL:         now.Add(ttlDuration).Unix(),
	}
}

func deliveryItem(rec domain.DeliveryRecord) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: rec.PK},
		"SK":          &types.AttributeValueMemberS{Value: rec.SK},
		"id":          &types.AttributeValueMemberS{Value: rec.ID},
		"responseId":  &types.AttributeValueMemberS{Value: rec.ResponseID},
		"modelId":     &types.AttributeValueMemberS{Value: rec.ModelID},
		"recipient":   &types.AttributeValueMemberS{Value: rec.Recipient},
		"status":      &types.AttributeValueMemberS{Value: rec.Status},
		"attemptedAt": &types.AttributeValueMemberS{Value: rec.AttemptedAt},
		"ttl":         &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.TTL)},
	}
	if rec.Error != "" {
		item["error"] = &types.AttributeValueMemberS{Value: rec.Error}
	}
	return item
}
