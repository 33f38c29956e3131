package scoring

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/AtharvaWandhare/synapse/internal/logger"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

const (
	defaultGeminiModel  = "gemini-2.5-flash"
	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

// Generator sends prompts to the Gemini API.
type Generator struct {
	client    *genai.Client
	modelName string
}

// NewGenerator creates a Generator for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	return &Generator{client: client, modelName: model}, nil
}

// GenerateContent returns the concatenated text parts of the first reply.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil || strings.TrimSpace(p.Text) == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.TrimSpace(p.Text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return out, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiScorer asks a generative model for a {"score": n} verdict.
type GeminiScorer struct {
	generator contentGenerator
	log       *zap.Logger
	maxLogLen int
}

func NewGeminiScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *GeminiScorer {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &GeminiScorer{generator: generator, log: log.Named("gemini"), maxLogLen: maxLogLength}
}

func (s *GeminiScorer) Score(ctx context.Context, profile model.SeekerProfile, job model.JobPosting) (int, error) {
	profileJSON, err := json.MarshalIndent(map[string]any{
		"skills":  profile.Skills,
		"profile": profile.ProfileText,
	}, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal profile payload: %w", err)
	}
	jobJSON, err := json.MarshalIndent(map[string]any{
		"title":        job.Title,
		"jobType":      job.JobType,
		"description":  job.Description,
		"requirements": job.Requirements,
	}, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(jobJSON))
	s.log.Debug("gemini score request",
		zap.String("job_id", job.ID),
		zap.String("seeker_id", profile.SeekerID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.Truncate(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return 0, err
	}

	s.log.Debug("gemini score response",
		zap.String("job_id", job.ID),
		zap.String("response_preview", logger.Truncate(raw, s.maxLogLen)),
	)
	return parseScore(raw)
}

func buildPrompt(profileJSON, jobJSON string) string {
	tmpl := promptTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = "Profile:\n{{PROFILE_JSON}}\n\nJob:\n{{JOB_JSON}}\n\nJSON Response:"
	}
	out := strings.ReplaceAll(tmpl, "{{PROFILE_JSON}}", profileJSON)
	return strings.ReplaceAll(out, "{{JOB_JSON}}", jobJSON)
}

// parseScore reads the score field of the model reply, tolerating fenced
// code blocks and numeric strings, and clamps it to 0..100.
func parseScore(raw string) (int, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return 0, fmt.Errorf("parse gemini response: %w", err)
	}
	f := coerceFloat(data["score"])
	if math.IsNaN(f) {
		return 0, errors.New("gemini response has no numeric score")
	}
	return Clamp(int(math.Round(f))), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}
