// Package rpc implements the server-side request pipeline for a JSON-RPC
// style protocol: positional-parameter calls against path-addressed
// endpoints, with an ordered hook chain that can observe or override every
// stage.
//
// Each request becomes one Call that moves through a fixed life cycle:
// decode, validate, authenticate, dispatch, classify, serialize. The
// Dispatcher owns the sequence and never lets a failure escape: every
// error, panic included, is classified into the protocol taxonomy and
// produces exactly one well-formed response (none for notifications).
//
// # Basic Usage
//
// Build an endpoint with an explicit method table, register it, and run
// calls through a dispatcher:
//
//	ep := rpc.NewEndpoint("/rpc")
//	ep.Handle("add", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
//	    var a, b int
//	    if len(params) != 2 {
//	        return nil, rpc.NewInvalidParams("add takes two params")
//	    }
//	    if err := json.Unmarshal(params[0], &a); err != nil {
//	        return nil, rpc.NewInvalidParams("a must be a number")
//	    }
//	    if err := json.Unmarshal(params[1], &b); err != nil {
//	        return nil, rpc.NewInvalidParams("b must be a number")
//	    }
//	    return a + b, nil
//	})
//
//	reg := rpc.NewRegistry()
//	reg.Register("/rpc", ep)
//
//	d := &rpc.Dispatcher{Auth: auth.AllowAll()}
//	call := rpc.NewCall(body, header, origin, ep)
//	d.Process(ctx, call)
//
// Transports read call.IsNotification, call.Outcome, and
// call.SerializedResponse after Process returns. The httprpc and natsrpc
// packages provide ready-made bindings.
//
// # Wire Shape
//
// Requests are single JSON objects:
//
//	{"id": 1, "methodName": "add", "params": [2, 3]}
//
// params must be an ordered sequence; named parameters are rejected with
// InvalidParams, and batch arrays are rejected with InvalidRequest. An
// absent or null id marks a notification: the method still runs, but no
// response body is produced. Responses carry either a result or an error:
//
//	{"id": 1, "result": 5}
//	{"id": 2, "error": {"code": -32601, "message": "method not found: missing"}}
//
// # Hooks
//
// A Hook is a struct of optional callbacks, one per stage, registered in
// order on the Dispatcher. All stages are observational except Dispatch,
// where a hook may perform the call itself: it sets MethodInvoked, records
// the outcome, and the dispatcher skips its own method resolution. A hook
// error at any stage becomes the call's outcome. Hooks also enable
// serialization takeover: a BeforeSerialize callback that fills
// SerializedResponse wins, and the dispatcher leaves it untouched.
//
// # Authentication
//
// The Dispatcher consults an Authenticator after decode: the authenticator
// sets IsAuthenticated and IsAuthorized on the call, and the gate fails
// closed (NotAuthenticated before NotAuthorized, both before dispatch). The
// auth package provides implementations from allow-all to API keys, JWT,
// OIDC, and sealed tickets.
//
// # Error Codes
//
// Standard codes are defined as constants:
//   - CodeParseError (-32700)
//   - CodeInvalidRequest (-32600)
//   - CodeMethodNotFound (-32601)
//   - CodeInvalidParams (-32602)
//   - CodeInternalError (-32603)
//   - CodeNotAuthenticated (-32001)
//   - CodeNotAuthorized (-32002)
//
// Methods and hooks return *Error to keep a specific code; any other error
// is coerced to InternalError with its message preserved.
//
// # Registration
//
// Endpoint tables, the registry, and the hook chain are plain containers
// read without locking during request processing. Registration is not safe
// concurrently with itself or with serving: perform it during startup and
// shutdown only.
package rpc
