package domain

import "encoding/json"

// ChatMessage is a single role-tagged message sent to the chat endpoint.
// Content is encoded as a plain string unless Parts is set, in which case it
// is encoded as the ordered list of parts.
type ChatMessage struct {
	Role  string
	Text  string
	Parts []ContentPart
}

// ContentPart is one element of a structured message content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{Role: m.Role, Content: m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: m.Role, Content: m.Text})
}

// ChatPayload is the request body of the text chat endpoint. It lives only for
// the duration of one outbound call.
type ChatPayload struct {
	Messages         []ChatMessage `json:"messages"`
	ProjectID        string        `json:"project_id"`
	ModelID          string        `json:"model_id"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	MaxTokens        int           `json:"max_tokens"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
}
