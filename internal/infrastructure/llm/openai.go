package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"GroupWatch/internal/config"
	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

const intentSystemPrompt = `You analyze %s job postings to determine if they are:
- SERVICE_REQUEST: Someone NEEDS a specific task done at a specific place (e.g. "Trenger hjelp med...", "Ser etter noen som kan...", "Ønsker å få...")
- SERVICE_OFFER: Someone is advertising availability, listing multiple services, stating qualifications or prices, or soliciting customers or employment (e.g. "Tilbyr...", "Leier ut...", "Vi utfører...", "Jeg kan hjelpe med...")

Respond with ONLY one word: REQUEST or OFFER`

const categorySystemPrompt = `You are a job posting analyzer. Extract structured information from %s job postings. Always respond with valid JSON only, no additional text.`

// promptLanguage maps a detected ISO 639-3 code to the language named in
// the prompts. Unknown or unreliable detections fall back to Norwegian,
// the dominant language of the monitored groups.
func promptLanguage(lang string) string {
	switch lang {
	case "eng":
		return "English"
	case "swe":
		return "Swedish"
	case "dan":
		return "Danish"
	default:
		return "Norwegian"
	}
}

// Client implements intent, category, and transport-confirmation
// classification against an OpenAI-compatible chat completions API.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.IntentClassifier = (*Client)(nil)
var _ ports.CategoryClassifier = (*Client)(nil)
var _ ports.TransportConfirmer = (*Client)(nil)

// NewClient builds a classification client from configuration.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ClassifyIntent runs the binary request-vs-offer stage.
func (c *Client) ClassifyIntent(ctx context.Context, title, body, lang string) (domain.Intent, error) {
	system := fmt.Sprintf(intentSystemPrompt, promptLanguage(lang))
	answer, err := c.complete(ctx, system, title+"\n"+body, 10)
	if err != nil {
		return domain.IntentRequest, err
	}
	if strings.Contains(strings.ToUpper(answer), "REQUEST") {
		return domain.IntentRequest, nil
	}
	return domain.IntentOffer, nil
}

// ClassifyCategory extracts the primary category, secondary categories, and
// location. The returned labels are raw; callers validate them against the
// taxonomy.
func (c *Client) ClassifyCategory(ctx context.Context, title, body, lang string) (ports.CategoryResult, error) {
	labels := make([]string, len(domain.Taxonomy))
	for i, cat := range domain.Taxonomy {
		labels[i] = string(cat)
	}

	prompt := fmt.Sprintf(`Analyze this %s job posting and extract:
1. Primary category (choose ONE): %s
2. Secondary categories (zero or more from the same list, excluding the primary)
3. Location (city/area mentioned, or "Unknown" if not specified)

Post Title: %s
Post Text: %s

Respond in JSON format:
{
  "category": "one of the categories above",
  "secondary_categories": ["zero or more categories"],
  "location": "city or area name"
}`, promptLanguage(lang), strings.Join(labels, ", "), title, body)

	system := fmt.Sprintf(categorySystemPrompt, promptLanguage(lang))
	answer, err := c.complete(ctx, system, prompt, 200)
	if err != nil {
		return ports.CategoryResult{}, err
	}

	var parsed struct {
		Category    string   `json:"category"`
		Secondaries []string `json:"secondary_categories"`
		Location    string   `json:"location"`
	}
	if err := json.Unmarshal([]byte(stripFences(answer)), &parsed); err != nil {
		return ports.CategoryResult{}, fmt.Errorf("parse category response: %w", err)
	}

	return ports.CategoryResult{
		Category:    parsed.Category,
		Secondaries: parsed.Secondaries,
		Location:    parsed.Location,
	}, nil
}

// ConfirmTransport answers the fast-path question: is this post primarily
// asking for transport or moving help?
func (c *Client) ConfirmTransport(ctx context.Context, title, body string) (bool, error) {
	prompt := `Is this Norwegian post primarily ASKING for transport, driving, delivery, or moving help (not offering it)? Respond with ONLY one word: YES or NO.

` + title + "\n" + body

	system := fmt.Sprintf(intentSystemPrompt, promptLanguage(""))
	answer, err := c.complete(ctx, system, prompt, 5)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(answer), "YES"), nil
}

// complete posts one chat completion and returns the first choice's text.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("llm client misconfigured")
	}

	payload, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0.1,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
