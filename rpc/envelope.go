package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Request is the decoded protocol envelope.
//
// Params is kept as raw JSON fragments: the protocol constrains params to an
// ordered sequence, and each method decodes its own positional arguments.
// A hook that populates a Call's envelope directly sets MethodName and
// Params; an envelope parsed from the wire carries the raw field values
// until validation refines them.
type Request struct {
	// ID is the raw correlation id. Nil or JSON null marks a notification.
	ID json.RawMessage
	// MethodName names the method to invoke on the endpoint.
	MethodName string
	// Params holds the ordered positional parameters.
	Params []json.RawMessage

	rawMethod json.RawMessage
	rawParams json.RawMessage
}

// IsNotification reports whether the envelope carries no correlation id.
// Absent and JSON null both count.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || bytes.Equal(r.ID, []byte("null"))
}

// Response is the protocol response envelope. Exactly one of Result and Err
// is meaningful. ID echoes the request id, or null when decode failed before
// an id was known.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Err    *Error          `json:"error,omitempty"`
}

// parseRequest decodes body into an unvalidated envelope. Only syntax-level
// failures are classified here: bytes that are not a single well-formed JSON
// object. A batch (array of envelopes) is rejected rather than iterated.
// Field shape constraints belong to validate, so that a shape error can
// still echo the request id.
func parseRequest(body []byte) (*Request, *Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, NewParseError("empty request body")
	}
	if trimmed[0] == '[' {
		return nil, NewInvalidRequest("batch requests are not supported")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return nil, NewParseError("parse error")
		}
		// Well-formed JSON, but not an object.
		return nil, NewInvalidRequest("request must be an object")
	}

	return &Request{
		ID:        fields["id"],
		rawMethod: fields["methodName"],
		rawParams: fields["params"],
	}, nil
}

// validate enforces the envelope's shape: methodName must be a non-empty
// string, params must be absent or an ordered sequence. Absent params are
// normalized to an empty sequence. A keyed mapping is InvalidParams; any
// other non-sequence shape is InvalidRequest. An envelope a hook populated
// with typed fields passes through untouched apart from the same checks.
func (r *Request) validate() *Error {
	if len(r.rawMethod) > 0 {
		var name string
		if err := json.Unmarshal(r.rawMethod, &name); err != nil {
			return NewInvalidRequest("methodName must be a string")
		}
		r.MethodName = name
	}
	if r.MethodName == "" {
		return NewInvalidRequest("methodName is required")
	}

	if len(r.rawParams) > 0 {
		switch r.rawParams[0] {
		case '[':
			var list []json.RawMessage
			if err := json.Unmarshal(r.rawParams, &list); err != nil {
				return NewInvalidRequest("params must be an ordered sequence")
			}
			r.Params = list
		case '{':
			return NewInvalidParams("params must be positional, not named")
		default:
			return NewInvalidRequest("params must be an ordered sequence")
		}
	}
	if r.Params == nil {
		r.Params = []json.RawMessage{}
	}
	return nil
}
