package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleTranslateEndpoint = "https://translate.googleapis.com/translate_a/single"

// googleLanguageCodes maps caption codes onto the codes the endpoint expects
var googleLanguageCodes = map[string]string{
	"zh": "zh-CN",
}

// GoogleClient uses the public translate_a/single endpoint (client=gtx)
type GoogleClient struct {
	endpoint string
	http     *http.Client
}

func NewGoogleClient(endpoint string, timeout time.Duration) *GoogleClient {
	if endpoint == "" {
		endpoint = googleTranslateEndpoint
	}
	return &GoogleClient{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

func googleCode(code string) string {
	if mapped, ok := googleLanguageCodes[code]; ok {
		return mapped
	}
	return code
}

func (c *GoogleClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	form := url.Values{}
	form.Set("client", "gtx")
	form.Set("sl", googleCode(source))
	form.Set("tl", googleCode(target))
	form.Set("dt", "t")
	form.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

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
		return "", fmt.Errorf("translate error (status %d)", resp.StatusCode)
	}

	return parseGoogleResponse(body)
}

// parseGoogleResponse joins the translated segments of a response shaped like
// [[["Hola","Hello",null,null,10],["mundo","world",...]],null,"en",...]
func parseGoogleResponse(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(raw) == 0 {
		return "", ErrEmptyTranslation
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected response layout: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyTranslation
	}
	return sb.String(), nil
}
