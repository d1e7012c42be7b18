package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"prompt-agent/internal/domain"
)

const (
	FromAddress = "watsonx-bot@noreply.com"
	Subject     = "Watsonx Response - Your Prompt"

	dateLayout = "02/01/2006 15:04:05"
)

// Message is a fully built email ready for a Sender.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
}

type emailView struct {
	Prompt     string
	Response   template.HTML
	ModelID    string
	ResponseID string
	Date       string
}

// The response content is inserted unescaped: the model is instructed to
// emit markdown and to quote any HTML it produces.
var emailTemplate = template.Must(template.New("email").Parse(`<html><head>` +
	`<meta charset="UTF-8">` +
	`<meta name="viewport" content="width=device-width, initial-scale=1.0">` +
	`<style>` + emailStyles + `</style>` +
	`</head><body><div class="container">` +
	`<div class="header"><h1>Watsonx Response</h1></div>` +
	`<div class="content">` +
	`<div class="section"><div class="section-title">Your Prompt</div>` +
	`<div class="prompt-box">{{.Prompt}}</div></div>` +
	`<div class="section"><div class="section-title">Response</div>` +
	`<div class="response-box">{{.Response}}</div>` +
	`<div class="metadata">` +
	`<strong>Model:</strong> {{.ModelID}}<br>` +
	`<strong>Response ID:</strong> {{.ResponseID}}<br>` +
	`<strong>Date:</strong> {{.Date}}` +
	`</div></div>` +
	`</div>` +
	`<div class="footer"><p>This is an automated response from the Watsonx system. Do not reply to this email.</p></div>` +
	`</div></body></html>`))

const emailStyles = `body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f5f5f5; padding: 20px; }` +
	`.container { max-width: 600px; margin: 0 auto; background-color: white; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); overflow: hidden; }` +
	`.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; text-align: center; }` +
	`.header h1 { margin: 0; font-size: 24px; }` +
	`.content { padding: 30px; }` +
	`.section { margin-bottom: 25px; }` +
	`.section-title { font-size: 14px; font-weight: bold; color: #667eea; text-transform: uppercase; margin-bottom: 10px; border-bottom: 2px solid #667eea; padding-bottom: 8px; }` +
	`.prompt-box { background-color: #f9f9f9; border-left: 4px solid #667eea; padding: 15px; border-radius: 4px; font-style: italic; color: #555; }` +
	`.response-box { background-color: #fafafa; border-left: 4px solid #764ba2; padding: 15px; border-radius: 4px; }` +
	`.response-box code { background-color: #f0f0f0; padding: 2px 6px; border-radius: 3px; font-family: 'Monaco', 'Menlo', monospace; font-size: 13px; }` +
	`.response-box pre { background-color: #2d2d2d; color: #f8f8f2; padding: 15px; border-radius: 4px; overflow-x: auto; font-family: 'Monaco', 'Menlo', monospace; font-size: 12px; }` +
	`.footer { background-color: #f5f5f5; padding: 20px; text-align: center; border-top: 1px solid #e0e0e0; font-size: 12px; color: #666; }` +
	`.metadata { font-size: 12px; color: #999; margin-top: 10px; padding-top: 10px; border-top: 1px solid #e0e0e0; }`

// RenderEmail builds the HTML body for a prompt/response exchange.
func RenderEmail(prompt string, resp domain.PromptResponse, at time.Time) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, emailView{
		Prompt:     prompt,
		Response:   template.HTML(resp.Content),
		ModelID:    resp.ModelID,
		ResponseID: resp.ID,
		Date:       at.Format(dateLayout),
	})
	if err != nil {
		return "", fmt.Errorf("notify: render email: %w", err)
	}
	return buf.String(), nil
}
