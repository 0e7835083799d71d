package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/llm"
	"shop-assistant-go/pkg/log"
)

// ColumnMapping relabels one result column for display.
type ColumnMapping struct {
	Key   string
	Label string
}

// Presenter runs the model calls that shape a successful result for display.
type Presenter struct {
	client llm.Client
	system string
}

func NewPresenter(client llm.Client, system string) *Presenter {
	return &Presenter{client: client, system: system}
}

// Decide asks for "FORMAT: <token>" and returns the normalized token.
func (p *Presenter) Decide(ctx context.Context, question, rowsJSON string) (string, error) {
	resp, err := llm.Collect(ctx, p.client, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: presentationPrompt(question, rowsJSON)}},
		Purpose:  PurposePresentation,
	})
	if err != nil {
		return "", fmt.Errorf("presentation decision: %w", err)
	}
	return ParseDecision(resp), nil
}

// ParseDecision takes everything after the first colon, trimmed and lower-cased.
// A response without a colon is used as a whole.
func ParseDecision(resp string) string {
	resp = strings.TrimSpace(resp)
	if _, after, ok := strings.Cut(resp, ":"); ok {
		resp = after
	}
	return strings.ToLower(strings.TrimSpace(resp))
}

// Simplify drops technical columns and relabels the rest. It never fails: when the
// model gives nothing usable the original rows come back.
func (p *Presenter) Simplify(ctx context.Context, question string, rows []model.Row, rowsJSON string) []model.Row {
	resp, err := llm.Collect(ctx, p.client, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: simplificationPrompt(question, rowsJSON)}},
		Purpose:  PurposeSimplify,
	})
	if err != nil {
		log.Warnw("column simplification failed, keeping raw rows", "error", err)
		return rows
	}
	mappings := ParseColumnMappings(resp)
	if len(mappings) == 0 {
		return rows
	}
	projected := ProjectRows(rows, mappings)
	if len(projected) == 0 {
		return rows
	}
	return projected
}

// ParseColumnMappings reads "originalKey:displayName" lines. Lines that do not split
// into two non-empty parts on the first colon are skipped.
func ParseColumnMappings(text string) []ColumnMapping {
	var out []ColumnMapping
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		key, label, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, label = strings.TrimSpace(key), strings.TrimSpace(label)
		if key == "" || label == "" {
			continue
		}
		out = append(out, ColumnMapping{Key: key, Label: label})
	}
	return out
}

// ProjectRows keeps only mapped, non-null fields under their display labels, in
// mapping order. Rows left with no fields are dropped.
func ProjectRows(rows []model.Row, mappings []ColumnMapping) []model.Row {
	out := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		projected := make(model.Row, 0, len(mappings))
		for _, m := range mappings {
			v, ok := row.Get(m.Key)
			if !ok || v.IsNull() {
				continue
			}
			projected = append(projected, model.Field{Key: m.Label, Value: v})
		}
		if len(projected) > 0 {
			out = append(out, projected)
		}
	}
	return out
}

// Explain writes a one-sentence introduction for a table, in the context of the
// conversation so far.
func (p *Presenter) Explain(ctx context.Context, history *History, question, rowsJSON string) string {
	msgs := append(history.Messages(), llm.Message{Role: llm.RoleUser, Content: explanationPrompt(question, rowsJSON)})
	resp, err := llm.Collect(ctx, p.client, llm.Request{
		Messages: msgs,
		System:   p.system,
		Purpose:  PurposeExplain,
	})
	resp = strings.TrimSpace(resp)
	if err != nil || resp == "" {
		if err != nil {
			log.Warnw("table explanation failed, using default text", "error", err)
		}
		return defaultTableExplanation
	}
	return resp
}

// Chart asks for the TITLE/LABEL/DATA lines of the chosen chart and builds the payload.
func (p *Presenter) Chart(ctx context.Context, ct ChartType, question, rowsJSON string) (ChartPayload, error) {
	resp, err := llm.Collect(ctx, p.client, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: chartPrompt(question, rowsJSON, ct.Kind)}},
		Purpose:  PurposeChart,
	})
	if err != nil {
		return ChartPayload{}, fmt.Errorf("chart generation: %w", err)
	}
	spec, err := ParseChartSpec(resp)
	if err != nil {
		return ChartPayload{}, err
	}
	return BuildChartPayload(ct.Kind, spec), nil
}

func marshalRows(rows []model.Row) string {
	if rows == nil {
		rows = []model.Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "[]"
	}
	return string(b)
}
