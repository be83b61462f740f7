package rpc

import (
	"context"
	"fmt"
)

// Hook observes and, at one stage, may override the pipeline. Every field
// is optional; a nil callback is skipped. For one call, callbacks run
// sequentially in registration order and a hook is never invoked twice at
// the same stage.
//
// All stages except Dispatch are observational: a callback may read and
// annotate the Call, but the pipeline consumes only its error. A non-nil
// error from any callback aborts the remaining hooks of that stage and
// becomes the call's new outcome.
//
// Dispatch is the override stage. A callback that performs the call itself
// must set MethodInvoked and record the result (Resolve or Reject); the
// pipeline then stops offering the call to later hooks and skips default
// method resolution. A Dispatch callback returning an error counts as
// having performed the call and failed.
type Hook struct {
	// BeforeDecode runs before the envelope is parsed. A hook may populate
	// Envelope here to bypass parsing entirely.
	BeforeDecode func(ctx context.Context, c *Call) error

	// AfterDecode runs once the envelope is populated, before validation.
	AfterDecode func(ctx context.Context, c *Call) error

	// BeforeDispatch is the pre-dispatch notification, emitted to every
	// hook before any Dispatch callback is offered the call.
	BeforeDispatch func(ctx context.Context, c *Call) error

	// Dispatch may perform the call itself. Not offered once an earlier
	// hook has invoked the method.
	Dispatch func(ctx context.Context, c *Call) error

	// OnError runs when the classified outcome is a failure, with the
	// classified error.
	OnError func(ctx context.Context, c *Call, e *Error) error

	// OnSuccess runs when the outcome is a success value.
	OnSuccess func(ctx context.Context, c *Call) error

	// BeforeSerialize runs before the response envelope is serialized. A
	// hook may populate SerializedResponse here; the pipeline will not
	// overwrite it.
	BeforeSerialize func(ctx context.Context, c *Call) error

	// AfterSerialize runs once, after the call is fully serialized.
	AfterSerialize func(ctx context.Context, c *Call) error
}

// Stage selectors for the observational stages.
func beforeDecode(h *Hook) func(context.Context, *Call) error    { return h.BeforeDecode }
func afterDecode(h *Hook) func(context.Context, *Call) error     { return h.AfterDecode }
func beforeDispatch(h *Hook) func(context.Context, *Call) error  { return h.BeforeDispatch }
func onSuccess(h *Hook) func(context.Context, *Call) error       { return h.OnSuccess }
func beforeSerialize(h *Hook) func(context.Context, *Call) error { return h.BeforeSerialize }
func afterSerialize(h *Hook) func(context.Context, *Call) error  { return h.AfterSerialize }

// AddHook appends h to the hook chain. Identity is pointer identity: adding
// a hook that is already registered is a no-op. Like endpoint registration,
// hook registration must be serialized by the caller and performed only
// while no calls are in flight.
func (d *Dispatcher) AddHook(h *Hook) {
	if h == nil {
		return
	}
	for _, existing := range d.hooks {
		if existing == h {
			return
		}
	}
	d.hooks = append(d.hooks, h)
}

// RemoveHook removes h from the chain and reports whether it was present.
// Removing an absent hook is a no-op.
func (d *Dispatcher) RemoveHook(h *Hook) bool {
	for i, existing := range d.hooks {
		if existing == h {
			d.hooks = append(d.hooks[:i], d.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// observe runs one observational stage across the hook chain in
// registration order, stopping at the first failure.
func (d *Dispatcher) observe(ctx context.Context, c *Call, stage func(*Hook) func(context.Context, *Call) error) error {
	for _, h := range d.hooks {
		cb := stage(h)
		if cb == nil {
			continue
		}
		if err := recoverCall(ctx, c, cb); err != nil {
			return err
		}
	}
	return nil
}

// recoverCall invokes fn, converting a panic into an error so that every
// failure funnels through classification instead of escaping the pipeline.
func recoverCall(ctx context.Context, c *Call, fn func(context.Context, *Call) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, c)
}
