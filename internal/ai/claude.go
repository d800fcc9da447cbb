package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"applyflow-engine/internal/domain"
)

// Claude generates application content through Anthropic's API.
type Claude struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64

	// Resume material the prompts score against.
	ResumeSummary string
	ResumeSkills  []string
}

type ClaudeOptions struct {
	APIKey        string
	Model         string
	MaxTokens     int
	Temperature   float64
	ResumeSummary string
	ResumeSkills  []string
}

func NewClaude(opts ClaudeOptions) *Claude {
	model := anthropic.ModelClaude3_7SonnetLatest
	if opts.Model != "" {
		model = anthropic.Model(opts.Model)
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Claude{
		client:        anthropic.NewClient(option.WithAPIKey(opts.APIKey)),
		model:         model,
		maxTokens:     maxTokens,
		temperature:   opts.Temperature,
		ResumeSummary: opts.ResumeSummary,
		ResumeSkills:  opts.ResumeSkills,
	}
}

func (c *Claude) ScoreRelevance(ctx context.Context, job domain.JobPosting) (Relevance, error) {
	prompt := fmt.Sprintf(`You are screening job postings for a candidate.

CANDIDATE SUMMARY:
%s

CANDIDATE SKILLS:
%s

JOB POSTING:
Title: %s
Company: %s
Location: %s
Description:
%s

Rate how relevant this posting is for the candidate on a 1-10 scale.
Return ONLY valid JSON, no other text:
{"score": <integer 1-10>, "reasoning": "<one sentence>"}`,
		c.ResumeSummary, strings.Join(c.ResumeSkills, ", "),
		job.Title, job.Company, job.Location, truncate(job.Description, int(c.maxTokens)*3))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return Relevance{}, err
	}

	var rel Relevance
	if err := json.Unmarshal([]byte(stripFences(text)), &rel); err != nil {
		return Relevance{}, fmt.Errorf("parse relevance response: %w, response: %s", err, text)
	}
	if rel.Score < 1 || rel.Score > 10 {
		return Relevance{}, fmt.Errorf("relevance score %d out of range", rel.Score)
	}
	return rel, nil
}

func (c *Claude) CoverLetter(ctx context.Context, job domain.JobPosting) (string, error) {
	prompt := fmt.Sprintf(`Write a short cover letter (3 paragraphs, under 250 words) for this application.

CANDIDATE SUMMARY:
%s

CANDIDATE SKILLS:
%s

JOB:
Title: %s
Company: %s
Description:
%s

Return only the letter body, no salutation placeholders like [Name].`,
		c.ResumeSummary, strings.Join(c.ResumeSkills, ", "),
		job.Title, job.Company, truncate(job.Description, int(c.maxTokens)*3))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Claude) OptimizeSection(ctx context.Context, job domain.JobPosting, section string) (string, error) {
	prompt := fmt.Sprintf(`Rewrite this resume section so it speaks to the job below. Keep it truthful, keep roughly the same length, plain text only.

SECTION:
%s

JOB:
Title: %s
Company: %s
Description:
%s`,
		section, job.Title, job.Company, truncate(job.Description, int(c.maxTokens)*3))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Claude) complete(ctx context.Context, prompt string) (string, error) {
	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	var text string
	for _, content := range response.Content {
		text = content.AsText().Text
		break
	}
	if text == "" {
		return "", fmt.Errorf("no text content in claude response")
	}
	return text, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
