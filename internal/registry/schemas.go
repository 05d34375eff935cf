package registry

import "encoding/json"

// Input schemas of the static tools. They are kept as literal JSON so that
// every schema is a plain object schema.

var noArgsInputSchema = json.RawMessage(`{"type": "object"}`)

func flowIDInputSchema(action string) json.RawMessage {
	return json.RawMessage(`{
	"type": "object",
	"properties": {
		"id": {
			"type": "string",
			"description": "The ID of the flow to ` + action + `."
		}
	},
	"required": ["id"]
}`)
}

var triggerComponentInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"id": {
			"type": "string",
			"description": "The ID of the flow to trigger."
		},
		"componentId": {
			"type": "string",
			"description": "The ID of the component to trigger."
		},
		"method": {
			"type": "string",
			"description": "HTTP method to use for the request (default: POST).",
			"default": "POST"
		},
		"body": {
			"type": "string",
			"description": "The body (a JSON string) of the request to send to the component."
		}
	},
	"required": ["id", "componentId"]
}`)

var getFlowLogsInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"id": {
			"type": "string",
			"description": "The ID of the flow to retrieve logs for."
		},
		"query": {
			"type": "string",
			"description": "Optional query string to filter logs. It uses the Apache Lucene Query Parser Syntax. The query can reference fields such as \"msg\", \"@timestamp\", \"portType\", \"port\", \"correlationId\", \"senderType\", \"senderId\" and \"inputMessages\"."
		}
	},
	"required": ["id"]
}`)
