package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Authenticator supplies the IsAuthenticated and IsAuthorized decisions for
// a decoded call. Implementations inspect the Call's transport context and
// envelope and set the two booleans; a returned error becomes the call's
// classified outcome.
type Authenticator interface {
	Authenticate(ctx context.Context, c *Call) error
}

// AuthenticatorFunc adapts a function to an Authenticator.
type AuthenticatorFunc func(ctx context.Context, c *Call) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, c *Call) error {
	return f(ctx, c)
}

var _ Authenticator = AuthenticatorFunc(nil)

// Dispatcher runs calls through the pipeline: decode, validate,
// authenticate, dispatch, classify, serialize, with the hook chain
// consulted at every stage.
//
// The zero value is usable but fails closed: with no Authenticator the auth
// gate rejects every call as NotAuthenticated. Open endpoints configure an
// allow-all authenticator. Hook registration (AddHook, RemoveHook) follows
// the same caller-serialized discipline as endpoint registration.
type Dispatcher struct {
	// Auth populates the call's authentication booleans before the gate.
	Auth Authenticator

	hooks []*Hook
}

// Process runs one call through the pipeline. It does not return an error:
// every failure is classified into the call's outcome, and when Process
// returns the call is in PhaseDone with exactly one populated outcome and,
// unless the call is a notification, a serialized response body.
//
// A call delivered with a pre-set error outcome (unreadable body) skips
// straight to classification.
func (d *Dispatcher) Process(ctx context.Context, c *Call) {
	if c.Outcome == nil {
		d.decode(ctx, c)
	}
	if c.Outcome == nil {
		d.validate(c)
	}
	if c.Outcome == nil {
		d.checkAuth(ctx, c)
	}
	if c.Outcome == nil {
		d.dispatch(ctx, c)
	}
	d.classify(ctx, c)
	d.respond(c)
	d.serialize(ctx, c)
	d.finalize(ctx, c)
}

// decode runs the pre-decode hooks, parses the envelope unless a hook has
// already supplied one, and runs the post-decode hooks.
func (d *Dispatcher) decode(ctx context.Context, c *Call) {
	if err := d.observe(ctx, c, beforeDecode); err != nil {
		c.Reject(err)
		return
	}
	if c.Envelope == nil {
		env, perr := parseRequest(c.RawBody)
		c.Envelope = env
		if perr != nil {
			c.Reject(perr)
			return
		}
	}
	if err := d.observe(ctx, c, afterDecode); err != nil {
		c.Reject(err)
		return
	}
	c.advance(PhaseDecoded)
}

// validate enforces the envelope shape, derives the notification flag, and
// requires a resolved endpoint. An unresolved endpoint fails MethodNotFound
// here, before the auth gate is consulted.
func (d *Dispatcher) validate(c *Call) {
	if perr := c.Envelope.validate(); perr != nil {
		c.Reject(perr)
		return
	}
	c.IsNotification = c.Envelope.IsNotification()
	if c.Endpoint == nil {
		c.Reject(NewMethodNotFound("no endpoint for request path"))
		return
	}
	c.advance(PhaseValidated)
}

// checkAuth runs the authenticator collaborator and then gates the call:
// not authenticated fails before authorization is even consulted.
func (d *Dispatcher) checkAuth(ctx context.Context, c *Call) {
	if d.Auth != nil {
		if err := recoverCall(ctx, c, d.Auth.Authenticate); err != nil {
			c.Reject(err)
			return
		}
	}
	if !c.IsAuthenticated {
		c.Reject(NewNotAuthenticated("not authenticated"))
		return
	}
	if !c.IsAuthorized {
		c.Reject(NewNotAuthorized("not authorized"))
		return
	}
	c.advance(PhaseAuthChecked)
}

// dispatch emits the pre-dispatch notification, offers each hook the
// override in registration order, and falls back to the endpoint's method
// table when no hook invoked the method.
func (d *Dispatcher) dispatch(ctx context.Context, c *Call) {
	if err := d.observe(ctx, c, beforeDispatch); err != nil {
		c.Reject(err)
		return
	}
	for _, h := range d.hooks {
		if c.MethodInvoked {
			break
		}
		if h.Dispatch == nil {
			continue
		}
		if err := recoverCall(ctx, c, h.Dispatch); err != nil {
			// The hook took the call and failed; no further attempt.
			c.MethodInvoked = true
			c.Reject(err)
			break
		}
	}
	if !c.MethodInvoked && c.Outcome == nil {
		d.invoke(ctx, c)
	}
	c.advance(PhaseDispatched)
}

// invoke resolves the method table entry and performs the call.
func (d *Dispatcher) invoke(ctx context.Context, c *Call) {
	m, ok := c.Endpoint.Lookup(c.Envelope.MethodName)
	if !ok {
		c.Reject(NewMethodNotFound("method not found: " + c.Envelope.MethodName))
		return
	}
	c.MethodInvoked = true
	v, err := callMethod(ctx, c, m)
	if err != nil {
		c.Reject(err)
		return
	}
	c.Resolve(v)
}

// callMethod runs m with panic recovery, so a panicking method body is a
// classified failure rather than a dead connection.
func callMethod(ctx context.Context, c *Call, m Method) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("panic in %s: %v", c.Envelope.MethodName, r)
		}
	}()
	return m(ctx, c, c.Envelope.Params)
}

// classify normalizes the outcome and runs the error or success hooks. A
// success hook failure re-enters the error branch once; an error hook
// failure replaces the outcome and aborts the remaining error hooks.
func (d *Dispatcher) classify(ctx context.Context, c *Call) {
	if c.Outcome == nil {
		// An override that invoked without recording a result counts as a
		// nil success.
		c.Resolve(nil)
	}
	c.advance(PhaseClassified)

	if !c.Failed() {
		err := d.observe(ctx, c, onSuccess)
		if err == nil {
			return
		}
		c.Reject(err)
	}

	c.Outcome.Err = Classify(c.Outcome.Err)
	e := c.Outcome.Err
	for _, h := range d.hooks {
		if h.OnError == nil {
			continue
		}
		err := recoverCall(ctx, c, func(ctx context.Context, c *Call) error {
			return h.OnError(ctx, c, e)
		})
		if err != nil {
			c.Reject(err)
			break
		}
	}
}

// respond derives the response envelope from the outcome. The envelope is
// built for every call; for notifications it never reaches a transport
// body.
func (d *Dispatcher) respond(c *Call) {
	resp := &Response{}
	if c.Envelope != nil {
		resp.ID = c.Envelope.ID
	}
	if c.Failed() {
		resp.Err = c.Outcome.Err
	} else {
		resp.Result = c.Outcome.Value
	}
	c.Response = resp
}

// serialize emits the pre-serialize notification and then honors the
// at-most-once invariant: a hook-populated body wins, and a notification
// never produces one.
func (d *Dispatcher) serialize(ctx context.Context, c *Call) {
	if err := d.observe(ctx, c, beforeSerialize); err != nil {
		// The failure replaces the outcome and the envelope it would have
		// serialized.
		c.Reject(err)
		d.respond(c)
	}
	if len(c.SerializedResponse) == 0 && !c.IsNotification {
		body, err := json.Marshal(c.Response)
		if err != nil {
			c.Reject(fmt.Errorf("marshal response: %w", err))
			d.respond(c)
			// An error envelope always marshals.
			body, _ = json.Marshal(c.Response)
		}
		c.SerializedResponse = body
	}
	c.advance(PhaseSerialized)
}

// finalize emits the post-serialize notification and seals the call. A
// failure here can no longer touch the serialized body; it lands in the
// outcome for the transport's status mapping.
func (d *Dispatcher) finalize(ctx context.Context, c *Call) {
	if err := d.observe(ctx, c, afterSerialize); err != nil {
		c.Reject(err)
	}
	c.advance(PhaseDone)
}
