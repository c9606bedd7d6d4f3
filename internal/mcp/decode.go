package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vocap/internal/errors"
)

// decode maps tool arguments onto a request struct. A wrongly typed argument
// becomes INVALID_REQUEST naming the argument.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("arguments are not JSON: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			vErr := errors.NewInvalidRequest(fmt.Sprintf("argument %q must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value))
			vErr.Details = map[string]any{"argument": typeErr.Field}
			return result, vErr
		}
		return result, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	return result, nil
}
