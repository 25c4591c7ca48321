package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/beautify/internal/errors"
)

// decode unmarshals MCP request arguments into a typed struct.
// Avoids unsafe type assertions and handles JSON decoding safely.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	b, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// decodeSession decodes a session tool request and requires a session id.
func decodeSession[T any](req mcp.CallToolRequest, id func(T) string) (T, error) {
	input, err := decode[T](req)
	if err != nil {
		return input, errors.NewInvalidRequest(err.Error())
	}
	if id(input) == "" {
		return input, errors.NewInvalidRequest("session_id is required")
	}
	return input, nil
}
