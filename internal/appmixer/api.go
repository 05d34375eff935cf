package appmixer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Platform endpoints.
const (
	FlowsPath    = "/flows"
	LogsPath     = "/logs"
	GatewaysPath = "/plugins/appmixer/ai/mcptools/gateways"
	EventsPath   = "/plugins/appmixer/ai/mcptools/events"
)

type coordinatorCommand struct {
	Command string `json:"command"`
}

func flowPath(id string) string {
	return FlowsPath + "/" + url.PathEscape(id)
}

// GetFlows lists the flows visible to the authenticated user.
func (c *Client) GetFlows(ctx context.Context) ([]Flow, error) {
	var flows []Flow
	if err := c.decode(ctx, FlowsPath, http.MethodGet, nil, &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// GetFlow fetches a single flow by id.
func (c *Client) GetFlow(ctx context.Context, id string) (*Flow, error) {
	var flow Flow
	if err := c.decode(ctx, flowPath(id), http.MethodGet, nil, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// DeleteFlow removes a flow.
func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	_, err := c.do(ctx, flowPath(id), http.MethodDelete, nil)
	return err
}

// StartFlow asks the coordinator to start a flow.
func (c *Client) StartFlow(ctx context.Context, id string) error {
	_, err := c.do(ctx, flowPath(id)+"/coordinator", http.MethodPost, coordinatorCommand{Command: "start"})
	return err
}

// StopFlow asks the coordinator to stop a flow.
func (c *Client) StopFlow(ctx context.Context, id string) error {
	_, err := c.do(ctx, flowPath(id)+"/coordinator", http.MethodPost, coordinatorCommand{Command: "stop"})
	return err
}

// TriggerComponent sends a request to a component of a flow. Method defaults
// to POST. Body is a JSON document; empty means {}.
func (c *Client) TriggerComponent(ctx context.Context, flowID, componentID, method, body string) (any, error) {
	target := flowPath(flowID) + "/components/" + url.PathEscape(componentID)
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	var payload any = map[string]any{}
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return nil, &ParseError{Target: "trigger body", Err: err}
		}
	}
	return c.Call(ctx, target, method, payload)
}

// GetLogs fetches the logs of a flow, optionally filtered by a Lucene query.
func (c *Client) GetLogs(ctx context.Context, flowID, query string) (*Logs, error) {
	q := url.Values{"flowId": {flowID}}
	if query != "" {
		q.Set("query", query)
	}
	var logs Logs
	if err := c.decode(ctx, LogsPath+"?"+q.Encode(), http.MethodGet, nil, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}

// GetGateways lists the registered gateways and their functions.
func (c *Client) GetGateways(ctx context.Context) ([]Gateway, error) {
	var gateways []Gateway
	if err := c.decode(ctx, GatewaysPath, http.MethodGet, nil, &gateways); err != nil {
		return nil, err
	}
	return gateways, nil
}
