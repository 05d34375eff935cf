package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/appmixer-mcp/internal/appmixer"
)

const timeLayout = "2006-01-02 15:04:05"

func formatFlows(flows []appmixer.Flow) string {
	lines := make([]string, len(flows))
	for i, f := range flows {
		lines[i] = fmt.Sprintf("ID: %s; Name: (%s)", f.FlowID, f.Name)
	}
	return strings.Join(lines, "\n")
}

func formatFlow(f *appmixer.Flow) string {
	lines := []string{
		"ID: " + f.FlowID,
		"Name: " + f.Name,
		"Description: " + f.Description,
		"Stage: " + f.Stage,
		"Created At: " + formatMillis(f.BTime),
		"Updated At: " + formatMillis(f.MTime),
		"Type: " + f.Type,
		"Flow: " + indentJSON(f.Flow),
	}
	return strings.Join(lines, "\n")
}

func formatMillis(m appmixer.Millis) string {
	if m == 0 {
		return ""
	}
	return m.Time().Local().Format(timeLayout)
}

// indentJSON pretty-prints raw with two-space indentation. Invalid input is
// returned as is.
func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func formatLogs(logs *appmixer.Logs) string {
	if logs == nil || len(logs.Hits) == 0 {
		return ""
	}
	records := make([]string, len(logs.Hits))
	for i, l := range logs.Hits {
		records[i] = strings.Join([]string{
			"Timestamp: " + string(l.Timestamp),
			"Severity: (" + string(l.Severity) + ")",
			"Port Type: " + string(l.PortType),
			"Port: " + string(l.Port),
			"Component ID: " + string(l.ComponentID),
			"Component Type: " + string(l.ComponentType),
			"Correlation ID: " + string(l.CorrelationID),
			"Sender Component ID: " + string(l.SenderID),
			"Sender Component Type: " + string(l.SenderType),
			"Input Message: " + compactJSON(l.InputMessages),
			"Message: " + string(l.Msg),
		}, "\n")
	}
	return strings.Join(records, "\n\n")
}

func formatTriggerResult(result any) string {
	if result == nil || result == "" {
		return "Component triggered successfully."
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(out)
}

func formatGateways(gateways []appmixer.Gateway) string {
	blocks := make([]string, len(gateways))
	for i, gw := range gateways {
		var sb strings.Builder
		sb.WriteString("Webhook: " + gw.Webhook)
		for _, t := range gw.Tools {
			fmt.Fprintf(&sb, "\n- %s: %s", t.Function.Name, t.Function.Description)
		}
		blocks[i] = sb.String()
	}
	return strings.Join(blocks, "\n\n")
}
