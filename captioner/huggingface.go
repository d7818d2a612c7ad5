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

const huggingFaceInferenceURL = "https://api-inference.huggingface.co/models/"

type hfGenerateKwargs struct {
	MinLength         int     `json:"min_length"`
	MaxLength         int     `json:"max_length"`
	NumBeams          int     `json:"num_beams"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	LengthPenalty     float64 `json:"length_penalty"`
	EarlyStopping     bool    `json:"early_stopping"`
}

type hfParameters struct {
	GenerateKwargs hfGenerateKwargs `json:"generate_kwargs"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// HuggingFaceClient calls the Hugging Face inference API for an image-to-text
// model such as Salesforce/blip-image-captioning-base.
type HuggingFaceClient struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

// NewHuggingFaceClient builds a client; an empty endpoint uses the public inference API.
func NewHuggingFaceClient(apiKey, model, endpoint string, timeout time.Duration) *HuggingFaceClient {
	if endpoint == "" {
		endpoint = huggingFaceInferenceURL + model
	}
	return &HuggingFaceClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *HuggingFaceClient) Name() string {
	return "huggingface"
}

func (c *HuggingFaceClient) Caption(ctx context.Context, img image.Image, opts Options) (string, error) {
	jpegData, err := encodeForModel(img, opts)
	if err != nil {
		return "", err
	}

	reqBody := hfRequest{
		Inputs: base64.StdEncoding.EncodeToString(jpegData),
		Parameters: hfParameters{
			GenerateKwargs: hfGenerateKwargs{
				MinLength:         opts.MinLength,
				MaxLength:         opts.MaxLength,
				NumBeams:          opts.NumBeams,
				RepetitionPenalty: opts.RepetitionPenalty,
				LengthPenalty:     opts.LengthPenalty,
				EarlyStopping:     opts.EarlyStopping,
			},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

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
		var apiErr hfError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.EstimatedTime > 0 {
				return "", fmt.Errorf("model %s unavailable (status %d): %s, retry in about %.0fs",
					c.model, resp.StatusCode, apiErr.Error, apiErr.EstimatedTime)
			}
			return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var generations []hfGeneration
	if err := json.Unmarshal(body, &generations); err != nil {
		// some deployments answer with a single object instead of a list
		var single hfGeneration
		if errSingle := json.Unmarshal(body, &single); errSingle != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		generations = []hfGeneration{single}
	}

	if len(generations) == 0 {
		return "", fmt.Errorf("no generations in response: %w", ErrEmptyCaption)
	}
	texts := make([]string, 0, len(generations))
	for _, g := range generations {
		texts = append(texts, g.GeneratedText)
	}
	return SelectCandidate(texts, opts)
}
