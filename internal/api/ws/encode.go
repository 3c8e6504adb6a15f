package ws

import (
	"encoding/base64"
	"time"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/request"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/websocket"
)

// Frame types sent on the event stream.
const (
	TypeSystem = "system"
	TypeEvent  = "event"
	TypeError  = "error"
	TypePong   = "pong"
)

// Frame is one JSON message on the event stream.
type Frame struct {
	Type      string `json:"type"`
	Seq       uint64 `json:"seq,omitempty"`
	Event     string `json:"event,omitempty"`
	Args      []any  `json:"args,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ResponseView is the JSON form of a response handle.
type ResponseView struct {
	Status     int               `json:"status"`
	StatusText string            `json:"status_text"`
	Headers    map[string]string `json:"headers"`
	Binary     bool              `json:"binary"`
	Body       string            `json:"body,omitempty"`
	BodyBase64 string            `json:"body_base64,omitempty"`
}

// NewResponseView converts a response handle. Binary bodies are base64 encoded.
func NewResponseView(r *request.Response) ResponseView {
	view := ResponseView{
		Status:     r.StatusCode(),
		StatusText: r.StatusText(),
		Headers:    r.Headers(),
		Binary:     r.Binary(),
	}
	if r.Binary() {
		view.BodyBase64 = base64.StdEncoding.EncodeToString(r.Body())
	} else {
		view.Body = r.Text()
	}
	return view
}

// EncodeEvent converts a queued event into a stream frame.
func EncodeEvent(e event.Event) Frame {
	args := make([]any, len(e.Args))
	for i, arg := range e.Args {
		args[i] = encodeArg(arg)
	}
	return Frame{
		Type:      TypeEvent,
		Seq:       e.Seq,
		Event:     e.Name,
		Args:      args,
		Timestamp: time.Now().Unix(),
	}
}

func encodeArg(v any) any {
	switch arg := v.(type) {
	case *request.Response:
		return NewResponseView(arg)
	case websocket.Handle:
		return arg.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(arg)
	default:
		return v
	}
}

func systemFrame(msg string) Frame {
	return Frame{Type: TypeSystem, Message: msg, Timestamp: time.Now().Unix()}
}

func errorFrame(msg string) Frame {
	return Frame{Type: TypeError, Message: msg, Timestamp: time.Now().Unix()}
}
