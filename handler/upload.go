package handler

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

const (
	fieldPrompt  = "prompt"
	fieldEmail   = "email"
	fieldCSVFile = "csvFile"

	maxTextFieldBytes = 1 << 20
)

type uploadForm struct {
	prompt    string
	hasPrompt bool
	email     string
	csvFile   []byte
}

// parseUpload reads the multipart fields of a send-prompt-with-csv request.
// Unknown parts are skipped.
func parseUpload(contentType string, body []byte, maxFileBytes int64) (uploadForm, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return uploadForm{}, badRequest("expected multipart/form-data body")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return uploadForm{}, badRequest("multipart boundary is missing")
	}

	var form uploadForm
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return uploadForm{}, badRequest("malformed multipart body: %v", err)
		}

		switch part.FormName() {
		case fieldPrompt:
			b, err := readAtMost(part, maxTextFieldBytes)
			if err != nil {
				return uploadForm{}, err
			}
			form.prompt = string(b)
			form.hasPrompt = true
		case fieldEmail:
			b, err := readAtMost(part, maxTextFieldBytes)
			if err != nil {
				return uploadForm{}, err
			}
			form.email = string(b)
		case fieldCSVFile:
			b, err := readAtMost(part, maxFileBytes)
			if err != nil {
				return uploadForm{}, err
			}
			form.csvFile = b
		}
		_ = part.Close()
	}

	if !form.hasPrompt {
		return uploadForm{}, badRequest("multipart field %q is required", fieldPrompt)
	}
	return form, nil
}

func readAtMost(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, badRequest("failed to read multipart part: %v", err)
	}
	if int64(len(b)) > max {
		return nil, tooLarge(max)
	}
	return b, nil
}
