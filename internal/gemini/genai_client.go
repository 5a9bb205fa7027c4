package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GenAIClient implements Generator using Google's Gen AI SDK.
type GenAIClient struct {
	client *genai.Client
	tracer trace.Tracer
}

// ClientConfig holds the credentials for one Gemini API client.
type ClientConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
}

// NewGenAIClient creates a Gemini client bound to one API key.
func NewGenAIClient(ctx context.Context, cfg ClientConfig) (*GenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GenAIClient{
		client: client,
		tracer: otel.Tracer("gemini-bridge.internal.gemini"),
	}, nil
}

// Generate sends the turns to generateContent and maps the response.
func (c *GenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gemini.generate_content", trace.WithAttributes(
		attribute.String("gemini.model", req.Model),
		attribute.Int("gemini.turns", len(req.Turns)),
		attribute.String("gemini.grounding", req.Grounding.String()),
	))
	defer span.End()

	if len(req.Turns) == 0 {
		return nil, ErrNoMessages
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for _, text := range turn.Parts {
			parts = append(parts, genai.NewPartFromText(text))
		}
		contents = append(contents, &genai.Content{Role: turn.Role, Parts: parts})
	}

	config := &genai.GenerateContentConfig{}
	for _, s := range req.Safety {
		config.SafetySettings = append(config.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	if req.Grounding == GroundingSearch {
		config.Tools = []*genai.Tool{searchTool(req.Model)}
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		return nil, fmt.Errorf("gemini: generate content failed: %w", err)
	}

	out := fromGenAIResponse(resp)
	span.SetAttributes(attribute.Int("gemini.candidates", len(out.Candidates)))
	return out, nil
}

// searchTool picks the grounding tool the model understands: 1.x models only
// accept the legacy search-retrieval tool, later ones the Google Search tool.
func searchTool(model string) *genai.Tool {
	name := strings.TrimPrefix(model, "models/")
	if name == "gemini-pro" || strings.HasPrefix(name, "gemini-1.") || strings.HasPrefix(name, "gemini-pro-") {
		return &genai.Tool{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}
	}
	return &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
}

func fromGenAIResponse(resp *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{}
	if resp == nil {
		return out
	}
	out.ModelVersion = resp.ModelVersion
	if resp.PromptFeedback != nil {
		out.BlockReason = string(resp.PromptFeedback.BlockReason)
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		c := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought || part.Text == "" {
					continue
				}
				c.Parts = append(c.Parts, part.Text)
			}
		}
		for _, r := range cand.SafetyRatings {
			if r == nil {
				continue
			}
			c.SafetyRatings = append(c.SafetyRatings, SafetyRating{
				Category:    string(r.Category),
				Probability: string(r.Probability),
				Blocked:     r.Blocked,
			})
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}
