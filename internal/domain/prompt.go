package domain

// PromptRequest is the inbound prompt. An empty Email means no notification.
type PromptRequest struct {
	Content string
	Email   string
}

// PromptResponse is the normalized answer returned to the caller and reused,
// unmodified, for the email notification.
type PromptResponse struct {
	Content   string `json:"content"`
	ModelID   string `json:"modelId"`
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}
