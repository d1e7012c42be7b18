package usecase

import (
	"time"

	"github.com/tidwall/gjson"

	"prompt-agent/internal/domain"
)

const (
	noResponseContent = "Sem resposta"
	noContent         = "Sem conteúdo"
	unknownModel      = "unknown"
)

// NormalizeResponse maps the chat endpoint body onto a PromptResponse. It never
// fails: a missing or unreadable body yields the sentinel response and absent
// fields fall back to fixed values.
func NormalizeResponse(body []byte, now func() time.Time) domain.PromptResponse {
	if now == nil {
		now = time.Now
	}
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return sentinelResponse(now)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return sentinelResponse(now)
	}

	createdAt := now().UnixMilli()
	if created := root.Get("created"); created.Type == gjson.Number {
		createdAt = created.Int()
	}

	return domain.PromptResponse{
		Content:   extractContent(root),
		ModelID:   root.Get("model_id").String(),
		ID:        root.Get("id").String(),
		CreatedAt: createdAt,
	}
}

func extractContent(root gjson.Result) string {
	choices := root.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return noContent
	}
	message := choices.Get("0.message")
	if !message.Exists() || message.Type == gjson.Null {
		return noContent
	}
	content := message.Get("content")
	if !content.Exists() || content.Type == gjson.Null {
		return noContent
	}
	return content.String()
}

func sentinelResponse(now func() time.Time) domain.PromptResponse {
	return domain.PromptResponse{
		Content:   noResponseContent,
		ModelID:   unknownModel,
		ID:        "",
		CreatedAt: now().UnixMilli(),
	}
}
