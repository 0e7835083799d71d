package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shop-assistant-go/internal/model"
	"shop-assistant-go/internal/repository"
	"shop-assistant-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	llm   *fakeLLM
	exec  *scriptedExecutor
	store *memStore
	audit *recordingAudit
	eng   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		llm:   newFakeLLM(),
		exec:  &scriptedExecutor{},
		store: newMemStore(),
		audit: &recordingAudit{},
	}
	f.eng = New(Options{
		Client:          f.llm,
		ClassifierModel: "classifier",
		Executor:        f.exec,
		Store:           f.store,
		Audit:           f.audit,
		System:          "SCHEMA",
		Dialect:         "mysql",
		MaxAttempts:     5,
		Backoff:         0,
	})
	t.Cleanup(f.eng.Wait)
	return f
}

func (f *engineFixture) run(t *testing.T, prompt, sessionID string) ([]Event, error) {
	t.Helper()
	var events []Event
	err := f.eng.Stream(context.Background(), prompt, sessionID, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestEngineConversationTurn(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Hayır"))
	f.llm.on(PurposeConversation, text("Merhaba", "", "! Size nasıl yardımcı olabilirim?"))

	events, err := f.run(t, "merhaba", "")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSessionInfo, EventStreamStart, EventText, EventText, EventStreamEnd}, eventTypes(events))
	assert.Equal(t, "session-1", events[0].SessionID)
	assert.Equal(t, "Merhaba", events[2].Text)
	assert.Empty(t, f.exec.queries)
	assert.Empty(t, f.llm.requests(PurposeGenerateSQL))

	conv := f.llm.requests(PurposeConversation)
	require.Len(t, conv, 1)
	assert.Equal(t, "SCHEMA", conv[0].System)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "merhaba"}}, conv[0].Messages)

	classify := f.llm.requests(PurposeClassify)
	require.Len(t, classify, 1)
	assert.Equal(t, "classifier", classify[0].Model)
	assert.Empty(t, classify[0].System)

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Merhaba! Size nasıl yardımcı olabilirim?", msgs[1].Content)
	assert.False(t, msgs[1].IsDatabaseQuery)
	assert.Empty(t, f.audit.all())
}

func TestEngineTableTurn(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Evet"))
	f.llm.on(PurposeGenerateSQL, text("```sql\nSELECT Name, Total FROM Products ORDER BY Total DESC LIMIT 5;\n```"))
	f.llm.on(PurposePresentation, text("FORMAT: tablo"))
	f.llm.on(PurposeSimplify, text("Name:Ürün Adı\nTotal:Satış Adedi"))
	f.llm.on(PurposeExplain, text("En çok satan 5 ürün aşağıda."))
	f.exec.results = []execResult{{rows: productRows(5)}}

	events, err := f.run(t, "en çok satan 5 ürünü listele", "")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSessionInfo, EventData, EventStreamEnd}, eventTypes(events))
	data := events[1]
	assert.Equal(t, "En çok satan 5 ürün aşağıda.", data.Explanation)
	require.Len(t, data.Rows, 5)
	assert.Equal(t, []string{"Ürün Adı", "Satış Adedi"}, data.Rows[0].Keys())

	require.Len(t, f.llm.requests(PurposeGenerateSQL), 1)
	assert.Equal(t, []string{"SELECT Name, Total FROM Products ORDER BY Total DESC LIMIT 5"}, f.exec.queries)

	// The explanation sees the conversation, not the generation scratch turns.
	explain := f.llm.requests(PurposeExplain)
	require.Len(t, explain, 1)
	require.Len(t, explain[0].Messages, 2)
	assert.Equal(t, "en çok satan 5 ürünü listele", explain[0].Messages[0].Content)

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 2)
	answer := msgs[1]
	assert.True(t, answer.IsDatabaseQuery)
	require.NotNil(t, answer.RelatedSQL)
	assert.Contains(t, *answer.RelatedSQL, "FROM Products")
	require.NotNil(t, answer.ChartType)
	assert.Equal(t, "table", *answer.ChartType)
	require.NotNil(t, answer.AdditionalData)
	assert.Contains(t, *answer.AdditionalData, `"Id":1`)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(answer.Content), &env))
	assert.Equal(t, "data_response", env["type"])
	assert.Equal(t, "En çok satan 5 ürün aşağıda.", env["explanation"])

	f.eng.Wait()
	audits := f.audit.all()
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Success)
	assert.Equal(t, "table", audits[0].RenderKind)
	assert.Equal(t, 5, audits[0].RowCount)
	assert.Equal(t, 1, audits[0].Attempts)
}

func TestEngineTableTurnKeepsRawRowsWhenSimplificationIsEmpty(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("evet"))
	f.llm.on(PurposeGenerateSQL, text("SELECT * FROM Products"))
	f.llm.on(PurposePresentation, text("FORMAT: tablo"))
	f.llm.on(PurposeSimplify, text("bilmiyorum"))
	f.llm.on(PurposeExplain, fail("quota"))
	f.exec.results = []execResult{{rows: productRows(2)}}

	events, err := f.run(t, "ürünleri göster", "")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, defaultTableExplanation, events[1].Explanation)
	assert.Equal(t, []string{"Id", "Name", "Total"}, events[1].Rows[0].Keys())
}

func TestEngineChartTurn(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Evet"))
	f.llm.on(PurposeGenerateSQL, text("SELECT c.Name, SUM(o.Total) FROM Orders o JOIN Categories c"))
	f.llm.on(PurposePresentation, text("FORMAT: Çubuk"))
	f.llm.on(PurposeChart, text("TITLE:Satışlar\nLABEL:A,B,C\nDATA:10,20,30"))
	f.exec.results = []execResult{{rows: productRows(3)}}

	events, err := f.run(t, "kategorilere göre satışları grafikle göster", "")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSessionInfo, EventChart, EventStreamEnd}, eventTypes(events))
	chart := events[1]
	assert.Equal(t, "İsteğiniz doğrultusunda hazırlanan 'Çubuk Grafik' aşağıdadır:", chart.Explanation)
	require.NotNil(t, chart.Chart)
	assert.Equal(t, "bar", chart.Chart.Type)
	assert.Equal(t, []string{"A", "B", "C"}, chart.Chart.Data.Labels)
	require.Len(t, chart.Chart.Data.Datasets, 1)
	assert.Equal(t, "Satışlar", chart.Chart.Data.Datasets[0].Label)
	assert.Equal(t, []float64{10, 20, 30}, chart.Chart.Data.Datasets[0].Data)
	assert.Empty(t, f.llm.requests(PurposeSimplify))

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[1].ChartType)
	assert.Equal(t, "bar", *msgs[1].ChartType)
}

func TestEngineChartWithNonFiniteData(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Evet"))
	f.llm.on(PurposeGenerateSQL, text("SELECT 1"))
	f.llm.on(PurposePresentation, text("FORMAT: bar"))
	f.llm.on(PurposeChart, text("LABEL:A,B\nDATA:NaN,Inf"))
	f.exec.results = []execResult{{rows: productRows(2)}}

	events, err := f.run(t, "satışları grafikle göster", "")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSessionInfo, EventChart, EventStreamEnd}, eventTypes(events))
	assert.Equal(t, []float64{0, 0}, events[1].Chart.Data.Datasets[0].Data)

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, `"type":"chart_response"`)

	f.eng.Wait()
	audits := f.audit.all()
	require.Len(t, audits, 1)
	assert.Equal(t, "bar", audits[0].RenderKind)
}

func TestEngineChartShapeMismatchEndsWithError(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Evet"))
	f.llm.on(PurposeGenerateSQL, text("SELECT 1"))
	f.llm.on(PurposePresentation, text("FORMAT: pasta"))
	f.llm.on(PurposeChart, text("TITLE:X\nLABEL:A,B\nDATA:1"))
	f.exec.results = []execResult{{rows: productRows(2)}}

	events, err := f.run(t, "dağılımı pasta grafikte göster", "")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSessionInfo, EventError}, eventTypes(events))
	assert.Equal(t, presentationFailedExplanation, events[1].Explanation)
	assert.Contains(t, events[1].Error, "Detay:")

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsDatabaseQuery)
	assert.Contains(t, msgs[1].Content, `"type":"error_response"`)

	f.eng.Wait()
	audits := f.audit.all()
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Success)
	assert.NotEmpty(t, audits[0].Error)
}

func TestEngineExhaustedRetries(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Evet"))
	f.llm.on(PurposeGenerateSQL, text("SELECT Foo FROM Products"))
	f.exec.results = []execResult{{err: errors.New("Unknown column 'Foo'")}}

	events, err := f.run(t, "foo değerlerini listele", "")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSessionInfo, EventError}, eventTypes(events))
	assert.Equal(t, queryFailedExplanation, events[1].Explanation)
	assert.Contains(t, events[1].Error, "Unknown column 'Foo'")
	assert.Contains(t, events[1].Error, "SELECT Foo FROM Products")
	assert.Len(t, f.llm.requests(PurposeGenerateSQL), 5)
	assert.Len(t, f.exec.queries, 5)
	assert.Empty(t, f.llm.requests(PurposePresentation))

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[1].AdditionalData)

	f.eng.Wait()
	audits := f.audit.all()
	require.Len(t, audits, 1)
	assert.False(t, audits[0].Success)
	assert.Equal(t, 5, audits[0].Attempts)
}

func TestEngineUnknownSession(t *testing.T) {
	f := newEngineFixture(t)

	events, err := f.run(t, "merhaba", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrSessionNotFound))
	assert.Empty(t, events)
	assert.Empty(t, f.llm.calls)
}

func TestEngineResumeReplaysHistory(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	session, err := f.store.CreateSession(ctx, "en çok satan ürünler")
	require.NoError(t, err)

	envelope, err := json.Marshal(DataResult("İşte en çok satanlar.", productRows(1)))
	require.NoError(t, err)
	require.NoError(t, f.store.AppendMessage(ctx, &model.ChatMessage{SessionID: session.SessionID, Role: model.RoleUser, Content: "en çok satan ürünler"}))
	require.NoError(t, f.store.AppendMessage(ctx, &model.ChatMessage{SessionID: session.SessionID, Role: model.RoleAssistant, Content: string(envelope), IsDatabaseQuery: true}))

	f.llm.on(PurposeClassify, text("Hayır"))
	f.llm.on(PurposeConversation, text("Tabii."))

	events, err := f.run(t, "teşekkürler", session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, events[0].SessionID)

	conv := f.llm.requests(PurposeConversation)
	require.Len(t, conv, 1)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "en çok satan ürünler"},
		{Role: llm.RoleAssistant, Content: "İşte en çok satanlar."},
		{Role: llm.RoleUser, Content: "teşekkürler"},
	}, conv[0].Messages)

	got, err := f.store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "en çok satan ürünler", got.Title)

	msgs, _ := f.store.ListMessages(ctx, session.SessionID)
	assert.Len(t, msgs, 4)
}

func TestEngineClientGoneStopsWithoutPersistingReply(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Hayır"))
	f.llm.on(PurposeConversation, text("Bir", "iki", "üç"))

	gone := errors.New("client gone")
	var events []Event
	err := f.eng.Stream(context.Background(), "say", "", func(ev Event) error {
		if ev.Type == EventText {
			return gone
		}
		events = append(events, ev)
		return nil
	})
	require.ErrorIs(t, err, gone)
	assert.Equal(t, []EventType{EventSessionInfo, EventStreamStart}, eventTypes(events))

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
}

func TestEngineCancelledDuringQueryLoop(t *testing.T) {
	f := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.llm.on(PurposeClassify, text("Evet"))
	f.llm.on(PurposeGenerateSQL, text("SELECT 1"))
	f.exec.results = []execResult{{err: errors.New("boom"), hook: cancel}}

	var events []Event
	err := f.eng.Stream(ctx, "stok durumu", "", func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []EventType{EventSessionInfo}, eventTypes(events))
	assert.Empty(t, f.audit.all())
}

func TestEngineWhitespaceReplyIsNotPersisted(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Hayır"))
	f.llm.on(PurposeConversation, text("  ", "\n"))

	events, err := f.run(t, "...", "")
	require.NoError(t, err)
	assert.Equal(t, EventStreamEnd, events[len(events)-1].Type)

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	assert.Len(t, msgs, 1)
}

func TestEngineConversationTransportError(t *testing.T) {
	f := newEngineFixture(t)
	f.llm.on(PurposeClassify, text("Hayır"))
	f.llm.on(PurposeConversation, reply{chunks: []string{"Yarım"}, err: errors.New("upstream reset")})

	events, err := f.run(t, "merhaba", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream reset")
	assert.Equal(t, EventText, events[len(events)-1].Type)

	msgs, _ := f.store.ListMessages(context.Background(), "session-1")
	assert.Len(t, msgs, 1)
}
