package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/pkg/anthropic"
	"github.com/sells-group/buyer-group-cli/pkg/perplexity"
)

const employmentSchema = `{
  "name": "employment_check",
  "schema": {
    "type": "object",
    "properties": {
      "current":  {"type": ["boolean", "null"]},
      "title":    {"type": "string"},
      "evidence": {"type": "string"}
    },
    "required": ["current", "evidence"]
  }
}`

const extractSystemPrompt = `You read a short research note about whether a person works at a company.
Reply with one JSON object and nothing else: {"current": true|false|null, "title": "...", "evidence": "..."}.
Use null when the note does not say.`

// verdict is the structured answer both models are asked for.
type verdict struct {
	Current  *bool  `json:"current"`
	Title    string `json:"title"`
	Evidence string `json:"evidence"`
}

// Employment confirms current employment with a web-grounded Perplexity
// search. When the answer is not valid JSON and an Anthropic client is
// configured, Haiku extracts the verdict from the prose.
type Employment struct {
	search    perplexity.Client
	extractor anthropic.Client
	model     string
	haiku     string
}

var _ buyergroup.EmploymentChecker = (*Employment)(nil)

// NewEmployment builds an employment checker. extractor may be nil.
func NewEmployment(search perplexity.Client, extractor anthropic.Client, searchModel, haikuModel string) *Employment {
	if haikuModel == "" {
		haikuModel = anthropic.DefaultModel
	}
	return &Employment{search: search, extractor: extractor, model: searchModel, haiku: haikuModel}
}

// CheckEmployment returns Known=false when neither model gives a verdict.
func (e *Employment) CheckEmployment(ctx context.Context, person model.Candidate, company model.Company) (buyergroup.Employment, error) {
	name := strings.TrimSpace(person.FullName)
	if name == "" {
		return buyergroup.Employment{}, nil
	}

	temp := 0.0
	maxTokens := 300
	req := perplexity.ChatCompletionRequest{
		Model: e.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: "You verify employment facts. Answer only with the requested JSON."},
			{Role: "user", Content: employmentQuestion(person, company)},
		},
		Temperature:         &temp,
		MaxTokens:           &maxTokens,
		SearchRecencyFilter: "month",
		ResponseFormat:      &perplexity.ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(employmentSchema)},
	}
	resp, err := e.search.ChatCompletion(ctx, req)
	if err != nil {
		return buyergroup.Employment{}, eris.Wrap(err, "employment source: perplexity")
	}

	text := resp.Text()
	v, ok := parseVerdict(text)
	if !ok && e.extractor != nil && text != "" {
		v, ok = e.extract(ctx, text)
	}
	if !ok || v.Current == nil {
		zap.L().Debug("employment source: no verdict", zap.String("person_id", person.ID))
		return buyergroup.Employment{}, nil
	}
	return buyergroup.Employment{Known: true, Current: *v.Current, Evidence: v.Evidence}, nil
}

func (e *Employment) extract(ctx context.Context, note string) (verdict, bool) {
	temp := 0.0
	resp, err := e.extractor.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.haiku,
		MaxTokens:   200,
		System:      extractSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: note}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Debug("employment source: haiku extraction failed", zap.Error(err))
		return verdict{}, false
	}
	resp.Usage.LogCost(e.haiku, "employment")

	var v verdict
	if err := resp.DecodeJSON(&v); err != nil {
		return verdict{}, false
	}
	return v, true
}

func parseVerdict(text string) (verdict, bool) {
	clean := anthropic.CleanJSON(text)
	if !strings.HasPrefix(clean, "{") {
		return verdict{}, false
	}
	var v verdict
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return verdict{}, false
	}
	return v, true
}

func employmentQuestion(person model.Candidate, company model.Company) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Does %s currently work at %s", person.FullName, company.Name)
	if company.Domain != "" {
		fmt.Fprintf(&b, " (%s)", company.Domain)
	}
	b.WriteString("?")
	if person.Title != "" {
		fmt.Fprintf(&b, " Their last known title is %q.", person.Title)
	}
	if person.LinkedInURL != "" {
		fmt.Fprintf(&b, " Profile: %s.", person.LinkedInURL)
	}
	b.WriteString(` Reply as {"current": true|false|null, "title": "...", "evidence": "..."}.`)
	return b.String()
}
