package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/llm"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/metrics"
)

// Purposes label model calls in logs and metrics.
const (
	PurposeClassify     = "classify"
	PurposeGenerateSQL  = "generate_sql"
	PurposePresentation = "presentation"
	PurposeSimplify     = "simplify"
	PurposeChart        = "chart"
	PurposeExplain      = "explain"
	PurposeConversation = "conversation"
)

// renderTable is stored as the chart type of table answers.
const renderTable = "table"

const auditPublishTimeout = 5 * time.Second

// SessionStore is the part of the chat repository the engine needs.
type SessionStore interface {
	CreateSession(ctx context.Context, firstPrompt string) (*model.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

// AuditPublisher receives one record per data-path turn.
type AuditPublisher interface {
	Publish(ctx context.Context, audit model.QueryAudit) error
}

// Options configures an Engine.
type Options struct {
	Client          llm.Client
	ClassifierModel string
	Executor        QueryExecutor
	Store           SessionStore
	// Audit is optional.
	Audit       AuditPublisher
	System      string
	Dialect     string
	MaxAttempts int
	Backoff     time.Duration
}

// Engine runs one chat turn at a time per call; a single Engine serves any number
// of concurrent sessions.
type Engine struct {
	client     llm.Client
	store      SessionStore
	audit      AuditPublisher
	system     string
	classifier *Classifier
	loop       *QueryLoop
	presenter  *Presenter

	pending sync.WaitGroup
}

func New(opts Options) *Engine {
	return &Engine{
		client:     opts.Client,
		store:      opts.Store,
		audit:      opts.Audit,
		system:     opts.System,
		classifier: NewClassifier(opts.Client, opts.ClassifierModel),
		loop:       NewQueryLoop(opts.Client, opts.Executor, opts.System, opts.Dialect, opts.MaxAttempts, opts.Backoff),
		presenter:  NewPresenter(opts.Client, opts.System),
	}
}

// Wait blocks until every background audit publish has finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}

// turn holds the state of one Stream call.
type turn struct {
	session *model.ChatSession
	history *History
	prompt  string
	emit    func(Event) error
}

// Stream handles one user prompt and reports progress through emit, in order.
// An unknown sessionID fails with repository.ErrSessionNotFound before anything
// is emitted. A non-nil error from emit, or a cancelled ctx, stops the turn and
// is returned; the partial assistant answer is not stored.
func (e *Engine) Stream(ctx context.Context, prompt, sessionID string, emit func(Event) error) error {
	t, err := e.resolve(ctx, prompt, sessionID)
	if err != nil {
		return err
	}
	t.emit = emit

	if err := emit(SessionInfo(t.session.SessionID)); err != nil {
		return err
	}

	userMsg := &model.ChatMessage{
		SessionID: t.session.SessionID,
		Role:      model.RoleUser,
		Content:   prompt,
	}
	if err := e.store.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("persist user prompt: %w", err)
	}
	t.history.Append(llm.RoleUser, prompt)

	needsData := e.classifier.NeedsData(ctx, prompt)
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debugw("prompt classified", "session_id", t.session.SessionID, "needs_data", needsData)

	if needsData {
		return e.dataTurn(ctx, t)
	}
	return e.conversationTurn(ctx, t)
}

func (e *Engine) resolve(ctx context.Context, prompt, sessionID string) (*turn, error) {
	if sessionID == "" {
		session, err := e.store.CreateSession(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return &turn{session: session, history: &History{}, prompt: prompt}, nil
	}

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := e.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &turn{session: session, history: HistoryFromMessages(messages), prompt: prompt}, nil
}

func (e *Engine) dataTurn(ctx context.Context, t *turn) error {
	start := time.Now()
	out, err := e.loop.Run(ctx, t.history, t.prompt)
	if err != nil {
		metrics.ObserveChatTurn("data", "cancelled")
		return err
	}

	audit := model.QueryAudit{
		SessionID: t.session.SessionID,
		Prompt:    t.prompt,
		SQL:       out.SQL,
		Attempts:  out.Attempts,
		Success:   out.Success,
		RowCount:  len(out.Rows),
	}

	if !out.Success {
		audit.Error = out.LastError
		e.publishAudit(audit, start)
		metrics.ObserveChatTurn("data", "query_failed")
		ev := ErrorResult(queryFailedExplanation, queryFailedDetail(out.LastError, out.SQL))
		return e.finishData(ctx, t, ev, out, "")
	}

	ev, kind, err := e.present(ctx, t, out.Rows)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ObserveChatTurn("data", "cancelled")
			return ctxErr
		}
		log.Warnw("presentation failed", "session_id", t.session.SessionID, "error", err)
		audit.Error = err.Error()
		e.publishAudit(audit, start)
		metrics.ObserveChatTurn("data", "presentation_failed")
		return e.finishData(ctx, t, ErrorResult(presentationFailedExplanation, presentationFailedDetail(err)), out, "")
	}

	audit.RenderKind = kind
	e.publishAudit(audit, start)
	metrics.ObserveChatTurn("data", kind)
	return e.finishData(ctx, t, ev, out, kind)
}

// present picks the format and builds the result event for a successful query.
func (e *Engine) present(ctx context.Context, t *turn, rows []model.Row) (Event, string, error) {
	rowsJSON := marshalRows(rows)
	decision, err := e.presenter.Decide(ctx, t.prompt, rowsJSON)
	if err != nil {
		return Event{}, "", err
	}

	if ct, ok := FindChartType(decision); ok {
		payload, err := e.presenter.Chart(ctx, ct, t.prompt, rowsJSON)
		if err != nil {
			return Event{}, "", err
		}
		return ChartResult(chartExplanation(ct.DisplayName), payload), ct.Kind, nil
	}

	simplified := e.presenter.Simplify(ctx, t.prompt, rows, rowsJSON)
	if err := ctx.Err(); err != nil {
		return Event{}, "", err
	}
	explanation := e.presenter.Explain(ctx, t.history, t.prompt, marshalRows(simplified))
	if err := ctx.Err(); err != nil {
		return Event{}, "", err
	}
	return DataResult(explanation, simplified), renderTable, nil
}

// finishData stores the result envelope, records its explanation in the working
// history and emits it. Only successful results are followed by stream_end.
func (e *Engine) finishData(ctx context.Context, t *turn, ev Event, out QueryOutcome, kind string) error {
	content, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode result envelope: %w", err)
	}
	msg := &model.ChatMessage{
		SessionID:       t.session.SessionID,
		Role:            model.RoleAssistant,
		Content:         string(content),
		IsDatabaseQuery: true,
		RelatedSQL:      model.StringPtr(out.SQL),
		ChartType:       model.StringPtr(kind),
	}
	if out.Success {
		msg.AdditionalData = model.StringPtr(marshalRows(out.Rows))
	}
	if err := e.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist assistant answer: %w", err)
	}
	t.history.Append(llm.RoleAssistant, ev.Explanation)

	if err := t.emit(ev); err != nil {
		return err
	}
	if ev.IsTerminal() {
		return nil
	}
	return t.emit(StreamEnd())
}

func (e *Engine) conversationTurn(ctx context.Context, t *turn) error {
	if err := t.emit(StreamStart()); err != nil {
		return err
	}

	var buf strings.Builder
	err := e.client.Stream(ctx, llm.Request{
		Messages: t.history.Messages(),
		System:   e.system,
		Purpose:  PurposeConversation,
	}, func(chunk string) error {
		if chunk == "" {
			return nil
		}
		buf.WriteString(chunk)
		return t.emit(TextFragment(chunk))
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		metrics.ObserveChatTurn("conversation", "aborted")
		return err
	}

	reply := buf.String()
	if strings.TrimSpace(reply) != "" {
		msg := &model.ChatMessage{
			SessionID: t.session.SessionID,
			Role:      model.RoleAssistant,
			Content:   reply,
		}
		if err := e.store.AppendMessage(ctx, msg); err != nil {
			return fmt.Errorf("persist assistant reply: %w", err)
		}
		t.history.Append(llm.RoleAssistant, reply)
	}
	metrics.ObserveChatTurn("conversation", "ok")
	return t.emit(StreamEnd())
}

// publishAudit hands the record to the publisher in the background. Failures are
// logged only.
func (e *Engine) publishAudit(audit model.QueryAudit, start time.Time) {
	if e.audit == nil {
		return
	}
	audit.DurationMs = time.Since(start).Milliseconds()
	audit.CreatedAt = time.Now()

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditPublishTimeout)
		defer cancel()
		if err := e.audit.Publish(ctx, audit); err != nil {
			log.Warnw("publish query audit failed", "session_id", audit.SessionID, "error", err)
		}
	}()
}
