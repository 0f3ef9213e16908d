package events

import "encoding/json"

// Event name constants
const (
	StatusLine       = "status.line"
	StatusTransition = "status.transition"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// StatusLineEvent is the typed payload for status.line. It carries the same
// fields as the line written to stdout.
type StatusLineEvent struct {
	Text    string `json:"text"`
	Class   string `json:"class"`
	Tooltip string `json:"tooltip"`
	Ts      int64  `json:"ts"`
}

// StatusTransitionEvent is the typed payload for status.transition.
type StatusTransitionEvent struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Notified bool   `json:"notified"`
	Ts       int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.StatusTransitionEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.From, payload.To)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
