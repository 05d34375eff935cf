package registry

import (
	"context"
	"fmt"
	"strings"
)

// Static tool names.
const (
	ToolGetFlows         = "get-flows"
	ToolGetFlow          = "get-flow"
	ToolDeleteFlow       = "delete-flow"
	ToolStartFlow        = "start-flow"
	ToolStopFlow         = "stop-flow"
	ToolTriggerComponent = "trigger-component"
	ToolGetFlowLogs      = "get-flow-logs"
	ToolGetGateways      = "get-gateways"
)

type staticHandler func(ctx context.Context, api API, args map[string]any) (string, error)

var staticTools = []Descriptor{
	{
		Name:        ToolGetFlows,
		Title:       "List flows",
		Description: "List Appmixer flows.",
		InputSchema: noArgsInputSchema,
	},
	{
		Name:        ToolGetFlow,
		Title:       "Get flow",
		Description: "Get a single Appmixer flow by its ID.",
		InputSchema: flowIDInputSchema("retrieve"),
	},
	{
		Name:        ToolDeleteFlow,
		Title:       "Delete flow",
		Description: "Delete an Appmixer flow by its ID.",
		InputSchema: flowIDInputSchema("delete"),
	},
	{
		Name:        ToolStartFlow,
		Title:       "Start flow",
		Description: "Start an Appmixer flow by its ID.",
		InputSchema: flowIDInputSchema("start"),
	},
	{
		Name:        ToolStopFlow,
		Title:       "Stop flow",
		Description: "Stop an Appmixer flow by its ID.",
		InputSchema: flowIDInputSchema("stop"),
	},
	{
		Name:  ToolTriggerComponent,
		Title: "Trigger component",
		Description: "Trigger a component in a flow by sending a HTTP webhook request to it. " +
			"Find the relevant component by getting the flow JSON descriptor (use get-flow tool and its flow field) " +
			"and finding the component ID by its label or type.",
		InputSchema: triggerComponentInputSchema,
	},
	{
		Name:        ToolGetFlowLogs,
		Title:       "Get flow logs",
		Description: "Get Appmixer flow logs.",
		InputSchema: getFlowLogsInputSchema,
	},
	{
		Name:        ToolGetGateways,
		Title:       "List gateways",
		Description: "List the registered MCP gateways with their webhook URLs and the functions each one provides.",
		InputSchema: noArgsInputSchema,
	},
}

var staticHandlers = map[string]staticHandler{
	ToolGetFlows:         getFlows,
	ToolGetFlow:          getFlow,
	ToolDeleteFlow:       deleteFlow,
	ToolStartFlow:        startFlow,
	ToolStopFlow:         stopFlow,
	ToolTriggerComponent: triggerComponent,
	ToolGetFlowLogs:      getFlowLogs,
	ToolGetGateways:      getGateways,
}

// StaticDescriptors returns the static tools in their fixed order.
func StaticDescriptors() []Descriptor {
	out := make([]Descriptor, len(staticTools))
	for i, d := range staticTools {
		d.Kind = KindStatic
		out[i] = d
	}
	return out
}

func getFlows(ctx context.Context, api API, _ map[string]any) (string, error) {
	flows, err := api.GetFlows(ctx)
	if err != nil {
		return "", err
	}
	return formatFlows(flows), nil
}

func getFlow(ctx context.Context, api API, args map[string]any) (string, error) {
	id, err := requiredString(args, "id")
	if err != nil {
		return "", err
	}
	flow, err := api.GetFlow(ctx, id)
	if err != nil {
		return "", err
	}
	return formatFlow(flow), nil
}

func deleteFlow(ctx context.Context, api API, args map[string]any) (string, error) {
	return flowCommand(ctx, args, api.DeleteFlow, "deleted")
}

func startFlow(ctx context.Context, api API, args map[string]any) (string, error) {
	return flowCommand(ctx, args, api.StartFlow, "started")
}

func stopFlow(ctx context.Context, api API, args map[string]any) (string, error) {
	return flowCommand(ctx, args, api.StopFlow, "stopped")
}

func flowCommand(ctx context.Context, args map[string]any, fn func(context.Context, string) error, verb string) (string, error) {
	id, err := requiredString(args, "id")
	if err != nil {
		return "", err
	}
	if err := fn(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Flow %s %s successfully.", id, verb), nil
}

func triggerComponent(ctx context.Context, api API, args map[string]any) (string, error) {
	flowID, err := requiredString(args, "id")
	if err != nil {
		return "", err
	}
	componentID, err := requiredString(args, "componentId")
	if err != nil {
		return "", err
	}
	method, err := optionalString(args, "method")
	if err != nil {
		return "", err
	}
	body, err := optionalString(args, "body")
	if err != nil {
		return "", err
	}

	result, err := api.TriggerComponent(ctx, flowID, componentID, method, body)
	if err != nil {
		return "", err
	}
	return formatTriggerResult(result), nil
}

func getFlowLogs(ctx context.Context, api API, args map[string]any) (string, error) {
	id, err := requiredString(args, "id")
	if err != nil {
		return "", err
	}
	query, err := optionalString(args, "query")
	if err != nil {
		return "", err
	}
	logs, err := api.GetLogs(ctx, id, query)
	if err != nil {
		return "", err
	}
	return formatLogs(logs), nil
}

func getGateways(ctx context.Context, api API, _ map[string]any) (string, error) {
	gateways, err := api.GetGateways(ctx)
	if err != nil {
		return "", err
	}
	return formatGateways(gateways), nil
}

func requiredString(args map[string]any, key string) (string, error) {
	s, err := optionalString(args, key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return s, nil
}

func optionalString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}
