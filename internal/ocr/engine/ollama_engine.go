package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/text"
)

type OllamaEngine struct {
	baseURL      string
	model        string
	useGPU       bool
	useSpaceChar bool
	client       *http.Client
}

type OllamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type OllamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type transcription struct {
	Lines []string `json:"lines"`
}

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.2-vision"
)

const transcribePrompt = `
You are an OCR engine for scanned Chinese government documents.
Transcribe every line of text in the image, top to bottom, exactly as printed.

Return **only** a JSON object with this exact schema:

{
  "lines": ["<first line>", "<second line>", ...]
}

* One array entry per printed line, in reading order.
* Do not translate, summarise or correct the text.
* If the page has no text, return {"lines": []}.
`

func NewOllamaEngine(baseURL, model string, useGPU, useSpaceChar bool) *OllamaEngine {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}

	return &OllamaEngine{
		baseURL:      baseURL,
		model:        model,
		useGPU:       useGPU,
		useSpaceChar: useSpaceChar,
		client:       &http.Client{Timeout: 5 * time.Minute},
	}
}

func (o *OllamaEngine) Name() string { return "ollama" }

func (o *OllamaEngine) Recognize(ctx context.Context, imagePath string) ([]Line, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	request := OllamaRequest{
		Model:  o.model,
		Prompt: transcribePrompt,
		Images: []string{base64.StdEncoding.EncodeToString(imageData)},
		Stream: false,
		Format: "json",
	}
	if !o.useGPU {
		request.Options = map[string]any{"num_gpu": 0}
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var ollamaResp OllamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	raw := parseTranscription(ollamaResp.Response)
	lines := make([]Line, 0, len(raw))
	for _, l := range text.NormalizeLines(raw, o.useSpaceChar) {
		lines = append(lines, Line{Text: l})
	}
	return lines, nil
}

func (o *OllamaEngine) Close() error {
	return nil
}

// parseTranscription prefers the {"lines": [...]} object and falls back to the
// raw response split on newlines when the model ignored the schema.
func parseTranscription(response string) []string {
	obj, err := extractJSON(response)
	if err == nil {
		var t transcription
		if err := json.Unmarshal(obj, &t); err == nil && t.Lines != nil {
			return t.Lines
		}
	}
	logger.DebugLog("[ollama]: no transcription object in response, using raw text: %v", err)
	return text.SplitLines(response)
}

// extractJSON returns the first balanced JSON object embedded in input.
func extractJSON(input string) (json.RawMessage, error) {
	start := -1
	for i, char := range input {
		if char == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("no JSON found in text")
	}

	braceCount := 0
	end := -1
	inString := false
	escaped := false

matchingBrace:
	for i := start; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			braceCount++
		case c == '}':
			braceCount--
			if braceCount == 0 {
				end = i + 1
				break matchingBrace
			}
		}
	}

	if end == -1 {
		return nil, fmt.Errorf("no matching closing brace found")
	}

	jsonStr := input[start:end]
	if !json.Valid([]byte(jsonStr)) {
		return nil, fmt.Errorf("extracted text is not valid JSON")
	}
	return json.RawMessage(jsonStr), nil
}
