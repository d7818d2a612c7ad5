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
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// gemini accepts at most this many candidates per request
const geminiMaxCandidates = 8

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	CandidateCount   int     `json:"candidateCount,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	FrequencyPenalty float64 `json:"frequencyPenalty,omitempty"`
}

type geminiRequest struct {
	GenerationConfig generationConfig `json:"generationConfig"`
	Contents         []content        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiClient captions images through the generateContent API
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewGeminiClient(apiKey, model, baseURL string, timeout time.Duration) *GeminiClient {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) Caption(ctx context.Context, img image.Image, opts Options) (string, error) {
	jpegData, err := encodeForModel(img, opts)
	if err != nil {
		return "", err
	}

	count := opts.NumBeams
	if count <= 0 {
		count = 1
	}
	if count > geminiMaxCandidates {
		count = geminiMaxCandidates
	}

	reqBody := geminiRequest{
		GenerationConfig: generationConfig{
			CandidateCount:   count,
			MaxOutputTokens:  opts.MaxLength,
			FrequencyPenalty: frequencyPenalty(opts.RepetitionPenalty),
		},
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: captionPrompt(opts)},
					{InlineData: &inlineData{
						MimeType: "image/jpeg",
						Data:     base64.StdEncoding.EncodeToString(jpegData),
					}},
				},
			},
		},
	}

	candidates, err := c.generateContent(ctx, reqBody)
	if err != nil {
		return "", err
	}
	return SelectCandidate(candidates, opts)
}

// generateContent tries v1beta first, then v1, and returns every candidate's text
func (c *GeminiClient) generateContent(ctx context.Context, body geminiRequest) ([]string, error) {
	endpoints := []string{
		fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey),
		fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		texts, err := c.post(ctx, ep, data)
		if err == nil {
			return texts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *GeminiClient) post(ctx context.Context, endpoint string, data []byte) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(bodyBytes), 200))
	}

	var gr geminiResponse
	if err := json.Unmarshal(bodyBytes, &gr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response: %w", ErrEmptyCaption)
	}

	texts := make([]string, 0, len(gr.Candidates))
	for _, cand := range gr.Candidates {
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		texts = append(texts, sb.String())
	}
	return texts, nil
}
