package appmixer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Flow is a workflow definition as returned by /flows.
type Flow struct {
	FlowID      string          `json:"flowId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Stage       string          `json:"stage,omitempty"`
	BTime       Millis          `json:"btime,omitempty"`
	MTime       Millis          `json:"mtime,omitempty"`
	Type        string          `json:"type,omitempty"`
	Flow        json.RawMessage `json:"flow,omitempty"`
}

// Millis is a millisecond epoch timestamp. It also accepts numeric and
// RFC 3339 strings.
type Millis int64

func (m *Millis) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*m = Millis(n)
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q", s)
		}
		*m = Millis(t.UnixMilli())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Millis(int64(f))
	return nil
}

// Time returns the timestamp in local time.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// Logs is the response of /logs.
type Logs struct {
	Hits []LogRecord `json:"hits"`
}

// LogRecord is one flow log entry.
type LogRecord struct {
	Timestamp     LogValue        `json:"@timestamp"`
	Severity      LogValue        `json:"severity"`
	PortType      LogValue        `json:"portType"`
	Port          LogValue        `json:"port"`
	ComponentID   LogValue        `json:"componentId"`
	ComponentType LogValue        `json:"componentType"`
	CorrelationID LogValue        `json:"correlationId"`
	SenderID      LogValue        `json:"senderId"`
	SenderType    LogValue        `json:"senderType"`
	InputMessages json.RawMessage `json:"inputMessages,omitempty"`
	Msg           LogValue        `json:"msg"`
}

// LogValue is a log field of any JSON type. Strings decode verbatim, null to
// the empty string, and anything else to its compact JSON text.
type LogValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *LogValue) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = LogValue(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = LogValue(buf.String())
	}
	return nil
}

// Gateway is a remote tool provider reachable through one webhook.
type Gateway struct {
	Webhook string        `json:"webhook"`
	Tools   []GatewayTool `json:"tools"`
}

// GatewayTool wraps one remotely callable function.
type GatewayTool struct {
	Function GatewayFunction `json:"function"`
}

// GatewayFunction describes a gateway function and its argument schema.
type GatewayFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}
