package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode round-trips the tool arguments through JSON into T, so the wire
// names in T's struct tags apply. Missing arguments decode to T's zero value.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	args := req.GetArguments()
	if len(args) == 0 {
		return out, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}
