package usecase

import (
	"strings"

	"prompt-agent/internal/domain"
)

const (
	csvContextHeading = "\n\n**CSV Context Data:**\n"

	maxTokens        = 2000
	frequencyPenalty = 0
	presencePenalty  = 0
	temperature      = 0
	topP             = 1
)

// systemPrompt is sent verbatim with every request; the model's formatting
// and escaping behavior depends on this exact text.
var systemPrompt = strings.Join([]string{
	"You always answer the questions with markdown formatting using GitHub syntax. ",
	"The markdown formatting you support: headings, bold, italic, links, tables, lists, ",
	"code blocks, and blockquotes. You must omit that you answer the questions with markdown.\n\n",
	"Any HTML tags must be wrapped in block quotes, for example <html>. ",
	"You will be penalized for not rendering code in block quotes.\n\n",
	"When returning code blocks, specify language.\n\n",
	"You are a helpful, respectful and honest assistant. Always answer as helpfully as possible, ",
	"while being safe. Your answers should not include any harmful, unethical, racist, sexist, ",
	"toxic, dangerous, or illegal content. Please ensure that your responses are socially unbiased ",
	"and positive in nature.\n\n",
	"If a question does not make any sense, or is not factually coherent, explain why instead of ",
	"answering something not correct. If you don't know the answer to a question, ",
	"please don't share false information.",
}, "")

// BuildChatPayload assembles the chat request for prompt. Decoding parameters
// are fixed and the prompt is passed through without validation.
func BuildChatPayload(prompt, projectID, modelID string) domain.ChatPayload {
	return domain.ChatPayload{
		Messages: []domain.ChatMessage{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Parts: []domain.ContentPart{{Type: "text", Text: prompt}}},
		},
		ProjectID:        projectID,
		ModelID:          modelID,
		FrequencyPenalty: frequencyPenalty,
		MaxTokens:        maxTokens,
		PresencePenalty:  presencePenalty,
		Temperature:      temperature,
		TopP:             topP,
	}
}

func enrichWithCSVContext(prompt, csvContext string) string {
	return prompt + csvContextHeading + csvContext
}
