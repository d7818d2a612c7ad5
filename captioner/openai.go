package captioner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageURL struct {
	URL string `json:"url"`
}

type imageContent struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	N                int           `json:"n,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIClient captions images with a vision-capable chat completions model
type OpenAIClient struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

func NewOpenAIClient(apiKey, model, endpoint string, timeout time.Duration) *OpenAIClient {
	if endpoint == "" {
		endpoint = openAIEndpoint
	}
	return &OpenAIClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

// encodeImageToDataURL converts JPEG bytes to a base64 data URL
func encodeImageToDataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}

func (c *OpenAIClient) Caption(ctx context.Context, img image.Image, opts Options) (string, error) {
	jpegData, err := encodeForModel(img, opts)
	if err != nil {
		return "", err
	}

	n := opts.NumBeams
	if n <= 0 {
		n = 1
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []any{
					textContent{Type: "text", Text: captionPrompt(opts)},
					imageContent{Type: "image_url", ImageURL: imageURL{URL: encodeImageToDataURL(jpegData)}},
				},
			},
		},
		MaxTokens:        opts.MaxLength,
		N:                n,
		FrequencyPenalty: frequencyPenalty(opts.RepetitionPenalty),
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", ErrEmptyCaption)
	}

	candidates := make([]string, 0, len(chatResp.Choices))
	for _, choice := range chatResp.Choices {
		candidates = append(candidates, choice.Message.Content)
	}
	return SelectCandidate(candidates, opts)
}
