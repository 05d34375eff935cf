package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/standardbeagle/appmixer-mcp/internal/appmixer"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

func gatewayDescriptor(webhook string, fn appmixer.GatewayFunction) Descriptor {
	return Descriptor{
		Name:        fn.Name,
		Title:       gatewayTitle(fn.Name),
		Description: fn.Description,
		InputSchema: normalizeSchema(fn.Parameters),
		Kind:        KindGateway,
		Webhook:     webhook,
		Function:    fn.Name,
	}
}

// gatewayTitle drops the first underscore-separated segment of name, so
// "slack_send_message" becomes "send_message". Names without an underscore
// have no title.
func gatewayTitle(name string) string {
	_, rest, ok := strings.Cut(name, "_")
	if !ok {
		return ""
	}
	return rest
}

// normalizeSchema returns raw if it is a JSON object schema. A schema without
// a type is treated as an object schema; anything else becomes {"type":"object"}.
func normalizeSchema(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return emptyObjectSchema
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return emptyObjectSchema
	}
	switch t := schema["type"]; t {
	case "object":
		return raw
	case nil:
		schema["type"] = "object"
		out, err := json.Marshal(schema)
		if err != nil {
			return emptyObjectSchema
		}
		return out
	default:
		return emptyObjectSchema
	}
}

type gatewayCall struct {
	Function gatewayInvocation `json:"function"`
}

type gatewayInvocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// callGateway posts the call to the descriptor's webhook. A string response
// is returned verbatim, an empty one as "", anything else JSON-encoded.
func (r *Registry) callGateway(ctx context.Context, desc Descriptor, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	body := gatewayCall{Function: gatewayInvocation{Name: desc.Function, Arguments: args}}

	result, err := r.api.Call(ctx, desc.Webhook, http.MethodPost, body)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode gateway result: %w", err)
	}
	return string(out), nil
}
