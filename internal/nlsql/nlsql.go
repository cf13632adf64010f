package nlsql

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z]*\n")
	fenceClose = regexp.MustCompile("\n```$")
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type Arguments struct {
	Query string `json:"query"`
}

type FunctionCall struct {
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments"`
}

// Decision is the model's choice between running SQL and replying directly.
// Arguments.Query holds the SQL or the static reply.
type Decision struct {
	FunctionCall FunctionCall `json:"function_call"`
	Raw          string       `json:"-"`
}

func (d *Decision) IsSQL() bool {
	return d.FunctionCall.Name == models.FunctionExecuteSQL
}

// RoutingError keeps the raw model output of a response that could not be used
type RoutingError struct {
	Err error
	Raw string
}

func (e *RoutingError) Error() string {
	return e.Err.Error()
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

type Router struct {
	generator Generator
}

func NewRouter(generator Generator) *Router {
	return &Router{generator: generator}
}

// BuildRoutingPrompt combines the routing instructions, the indented table metadata and the question
func BuildRoutingPrompt(question string, md models.TableMetadata) (string, error) {
	mdJSON, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode table metadata: %w", err)
	}
	return fmt.Sprintf(models.RoutingPromptTemplate, models.RoutingInstruction, mdJSON, question), nil
}

// Route asks the model whether question needs SQL against the table described by md
func (r *Router) Route(ctx context.Context, question string, md models.TableMetadata) (*Decision, error) {
	prompt, err := BuildRoutingPrompt(question, md)
	if err != nil {
		return nil, err
	}

	raw, err := r.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	d, err := ParseDecision(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw", raw).Msg("Unusable routing response")
		return nil, err
	}
	log.Debug().Str("function", d.FunctionCall.Name).Str("query", d.FunctionCall.Arguments.Query).Msg("Routed query")
	return d, nil
}

// ParseDecision reads the function_call object from a model response
func ParseDecision(raw string) (*Decision, error) {
	text := stripFences(raw)

	var d Decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		if err2 := json.Unmarshal([]byte(repairJSON(text)), &d); err2 != nil {
			return nil, &RoutingError{Err: fmt.Errorf("%w: %v", models.ErrUnparsableResponse, err), Raw: raw}
		}
	}
	d.Raw = raw

	switch d.FunctionCall.Name {
	case models.FunctionExecuteSQL, models.FunctionStaticResponse:
		return &d, nil
	default:
		return nil, &RoutingError{Err: models.ErrUnknownFunction, Raw: raw}
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = fenceOpen.ReplaceAllString(s, "")
		s = fenceClose.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// FormatResult phrases query rows as a sentence. Without a usable model reply it
// falls back to a plain description of the rows.
func (r *Router) FormatResult(ctx context.Context, question, sql string, records []map[string]any) string {
	if len(records) == 0 {
		return models.NoDataReply
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err == nil {
		prompt := fmt.Sprintf(models.FormatResultPromptTemplate, question, sql, data)
		var answer string
		if answer, err = r.generator.Generate(ctx, prompt); err == nil && answer != "" {
			return answer
		}
	}
	log.Warn().Err(err).Msg("Falling back to plain result formatting")

	if len(records) == 1 && len(records[0]) == 1 {
		for _, v := range records[0] {
			return fmt.Sprintf("The result is %v.", v)
		}
	}
	return fmt.Sprintf("Found %d records in the data.", len(records))
}
