package assistant

import (
	"encoding/json"

	"shop-assistant-go/internal/model"
)

// EventType is the wire discriminator of a stream event.
type EventType string

const (
	EventSessionInfo EventType = "session_info"
	EventStreamStart EventType = "stream_start"
	EventText        EventType = "text_response"
	EventData        EventType = "data_response"
	EventChart       EventType = "chart_response"
	EventError       EventType = "error_response"
	EventStreamEnd   EventType = "stream_end"
)

// Event is one message on the outbound stream. Only the fields of its variant are
// set; use the constructors below.
type Event struct {
	Type        EventType
	SessionID   string
	Text        string
	Explanation string
	Rows        []model.Row
	Chart       *ChartPayload
	Error       string
}

func SessionInfo(sessionID string) Event { return Event{Type: EventSessionInfo, SessionID: sessionID} }
func StreamStart() Event                 { return Event{Type: EventStreamStart} }
func StreamEnd() Event                   { return Event{Type: EventStreamEnd} }
func TextFragment(text string) Event     { return Event{Type: EventText, Text: text} }

func DataResult(explanation string, rows []model.Row) Event {
	if rows == nil {
		rows = []model.Row{}
	}
	return Event{Type: EventData, Explanation: explanation, Rows: rows}
}

func ChartResult(explanation string, chart ChartPayload) Event {
	return Event{Type: EventChart, Explanation: explanation, Chart: &chart}
}

func ErrorResult(explanation, detail string) Event {
	return Event{Type: EventError, Explanation: explanation, Error: detail}
}

// IsTerminal reports whether no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Type == EventStreamEnd || e.Type == EventError
}

type sessionInfoWire struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
}

type bareWire struct {
	Type EventType `json:"type"`
}

type textWire struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
}

type dataWire struct {
	Type        EventType   `json:"type"`
	Explanation string      `json:"explanation"`
	Data        []model.Row `json:"data"`
}

type chartWire struct {
	Type        EventType     `json:"type"`
	Explanation string        `json:"explanation"`
	Payload     *ChartPayload `json:"payload"`
}

type errorWire struct {
	Type        EventType `json:"type"`
	Explanation string    `json:"explanation"`
	Error       string    `json:"error"`
}

// MarshalJSON writes the variant's payload fields next to the type discriminator.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventSessionInfo:
		return json.Marshal(sessionInfoWire{Type: e.Type, SessionID: e.SessionID})
	case EventText:
		return json.Marshal(textWire{Type: e.Type, Text: e.Text})
	case EventData:
		return json.Marshal(dataWire{Type: e.Type, Explanation: e.Explanation, Data: e.Rows})
	case EventChart:
		return json.Marshal(chartWire{Type: e.Type, Explanation: e.Explanation, Payload: e.Chart})
	case EventError:
		return json.Marshal(errorWire{Type: e.Type, Explanation: e.Explanation, Error: e.Error})
	default:
		return json.Marshal(bareWire{Type: e.Type})
	}
}

// envelope is the persisted form of a data-path assistant turn, read back when a
// session is resumed.
type envelope struct {
	Type        EventType `json:"type"`
	Explanation string    `json:"explanation"`
}

// explanationOf extracts the explanation from a persisted envelope.
func explanationOf(content string) (string, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return "", false
	}
	if env.Explanation == "" {
		return "", false
	}
	return env.Explanation, true
}
