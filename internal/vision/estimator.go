// Package vision asks a multimodal model for a rough job-size estimate from
// customer photos. The output is advisory only: it pre-fills the quote form
// and is always clamped to sane bounds before anyone sees it.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
)

// ErrUpstream wraps any failure on the model provider side.
var ErrUpstream = errors.New("vision provider error")

// Suggestion is the model's guess at job size. Values are clamped, never
// trusted raw, and never feed the pricing engine without a human in the loop.
type Suggestion struct {
	EstimatedHours  float64 `json:"estimated_hours"`
	CrewSize        int     `json:"crew_size"`
	GarbageBagCount int     `json:"garbage_bag_count"`
	MattressesCount int     `json:"mattresses_count"`
	BoxSpringsCount int     `json:"box_springs_count"`
	Notes           string  `json:"notes"`
}

type Estimator struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

func NewEstimator(apiKey string) *Estimator {
	return &Estimator{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
	}
}

const systemPrompt = "You estimate hauling and moving jobs from photos. " +
	"Reply with a single JSON object with keys estimated_hours (number), crew_size (integer), " +
	"garbage_bag_count (integer), mattresses_count (integer), box_springs_count (integer), " +
	"notes (string). No other text."

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EstimateFromImages sends the photos and the customer's description to the
// model and returns a clamped suggestion.
func (e *Estimator) EstimateFromImages(ctx context.Context, description string, imageURLs []string) (*Suggestion, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("image estimation is not configured")
	}
	if len(imageURLs) == 0 {
		return nil, fmt.Errorf("at least one image is required")
	}

	userText := "Estimate this job."
	if description != "" {
		userText = "Estimate this job. Customer description: " + description
	}
	parts := []contentPart{{Type: "text", Text: userText}}
	for _, u := range imageURLs {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u}})
	}

	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: parts},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUpstream)
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(stripJSONFences(out.Choices[0].Message.Content)), &suggestion); err != nil {
		return nil, fmt.Errorf("%w: model reply is not valid JSON: %v", ErrUpstream, err)
	}

	clamp(&suggestion)
	return &suggestion, nil
}

// stripJSONFences removes a ```json ... ``` wrapper when the model adds one.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp(s *Suggestion) {
	s.EstimatedHours = clampFloat(s.EstimatedHours, 0, 12)
	s.CrewSize = clampInt(s.CrewSize, 1, 4)
	s.GarbageBagCount = clampInt(s.GarbageBagCount, 0, 60)
	s.MattressesCount = clampInt(s.MattressesCount, 0, 10)
	s.BoxSpringsCount = clampInt(s.BoxSpringsCount, 0, 10)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
