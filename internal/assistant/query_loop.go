package assistant

import (
	"context"
	"regexp"
	"strings"
	"time"

	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/llm"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/metrics"
)

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 500 * time.Millisecond
)

// QueryExecutor runs a query against the operational database.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]model.Row, error)
}

// QueryOutcome is the result of one generation/execution loop.
type QueryOutcome struct {
	Success   bool
	SQL       string
	Rows      []model.Row
	LastError string
	Attempts  int
}

// QueryLoop generates a query, runs it and feeds failures back to the model
// until it succeeds or runs out of attempts.
type QueryLoop struct {
	client      llm.Client
	executor    QueryExecutor
	system      string
	dialect     string
	maxAttempts int
	backoff     time.Duration
}

func NewQueryLoop(client llm.Client, executor QueryExecutor, system, dialect string, maxAttempts int, backoff time.Duration) *QueryLoop {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff < 0 {
		backoff = 0
	}
	return &QueryLoop{
		client:      client,
		executor:    executor,
		system:      system,
		dialect:     dialect,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Run returns an error only when ctx is done. Every other failure is reported
// through the outcome. history is cloned and left untouched.
func (l *QueryLoop) Run(ctx context.Context, history *History, prompt string) (QueryOutcome, error) {
	scratch := history.Clone()
	var out QueryOutcome

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		out.Attempts = attempt

		instruction := firstAttemptPrompt(prompt, l.dialect)
		if attempt > 1 {
			instruction = retryPrompt(out.LastError)
		}
		msgs := append(scratch.Messages(), llm.Message{Role: llm.RoleUser, Content: instruction})

		raw, err := llm.Collect(ctx, l.client, llm.Request{
			Messages: msgs,
			System:   l.system,
			Purpose:  PurposeGenerateSQL,
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if err != nil {
			out.LastError = err.Error()
			metrics.ObserveQueryAttempt("failed")
			log.Warnw("sql generation failed", "attempt", attempt, "error", err)
			if waitErr := l.wait(ctx, attempt); waitErr != nil {
				return out, waitErr
			}
			continue
		}
		scratch.Append(llm.RoleUser, instruction)
		scratch.Append(llm.RoleAssistant, raw)

		query := SanitizeSQL(raw)
		if query == "" {
			out.LastError = emptyQueryError
			metrics.ObserveQueryAttempt("empty")
			if waitErr := l.wait(ctx, attempt); waitErr != nil {
				return out, waitErr
			}
			continue
		}
		out.SQL = query

		rows, err := l.executor.Execute(ctx, query)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if err != nil {
			out.LastError = err.Error()
			metrics.ObserveQueryAttempt("failed")
			log.Infow("generated sql failed", "attempt", attempt, "sql", query, "error", err)
			if waitErr := l.wait(ctx, attempt); waitErr != nil {
				return out, waitErr
			}
			continue
		}

		metrics.ObserveQueryAttempt("ok")
		out.Success = true
		out.Rows = rows
		out.LastError = ""
		return out, nil
	}
	return out, nil
}

// wait sleeps backoff*attempt between attempts, but not after the last one.
func (l *QueryLoop) wait(ctx context.Context, attempt int) error {
	if attempt >= l.maxAttempts || l.backoff == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(l.backoff * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	fencedBlock = regexp.MustCompile("(?is)```(?:sql|mysql|postgresql|postgres|pgsql)?\\s*(.*?)\\s*```")
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeSQL extracts the query from model output: the body of the first fenced
// block if there is one, otherwise the text with whitespace collapsed. Trailing
// semicolons are dropped.
func SanitizeSQL(raw string) string {
	var q string
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		q = strings.TrimSpace(m[1])
	} else {
		q = strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
	}
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}
