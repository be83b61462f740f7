package rpc

import "net/http"

// Phase is a Call's position in the pipeline life cycle.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseDecoded
	PhaseValidated
	PhaseAuthChecked
	PhaseDispatched
	PhaseClassified
	PhaseSerialized
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseDecoded:
		return "decoded"
	case PhaseValidated:
		return "validated"
	case PhaseAuthChecked:
		return "auth-checked"
	case PhaseDispatched:
		return "dispatched"
	case PhaseClassified:
		return "classified"
	case PhaseSerialized:
		return "serialized"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// phaseTransitions lists the permitted moves. The life cycle is strictly
// forward and no phase repeats, with one exception: classification is
// reachable from any earlier phase via an abrupt failure.
var phaseTransitions = map[Phase][]Phase{
	PhaseCreated:     {PhaseDecoded, PhaseClassified},
	PhaseDecoded:     {PhaseValidated, PhaseClassified},
	PhaseValidated:   {PhaseAuthChecked, PhaseClassified},
	PhaseAuthChecked: {PhaseDispatched, PhaseClassified},
	PhaseDispatched:  {PhaseClassified},
	PhaseClassified:  {PhaseSerialized},
	PhaseSerialized:  {PhaseDone},
	PhaseDone:        {},
}

// CanTransition reports whether the life cycle permits moving from one
// phase to another.
func CanTransition(from, to Phase) bool {
	allowed, ok := phaseTransitions[from]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome is a call's terminal result. Err nil marks success; exactly one
// of Value and Err is meaningful.
type Outcome struct {
	Value any
	Err   *Error
}

// Call is the mutable per-request record that threads through the pipeline.
//
// A Call is owned by the Dispatcher for the duration of one request. Hooks,
// authenticators, and methods receive it to observe and, at defined stages,
// mutate it. Once the call reaches PhaseDone it must be treated as
// immutable; transports then read IsNotification, Outcome, and
// SerializedResponse to map the result onto the wire.
type Call struct {
	// RawBody is the fully buffered request payload. Immutable once set.
	RawBody []byte

	// Header and RemoteOrigin carry transport-supplied context. Immutable.
	Header       http.Header
	RemoteOrigin string

	// Endpoint is a non-owning reference resolved once from the request
	// path. Nil when no endpoint matched; never reassigned.
	Endpoint *Endpoint

	// Envelope is the decoded request. A pre-decode hook may populate it,
	// in which case the pipeline skips parsing.
	Envelope *Request

	// IsNotification is derived from the envelope's id during validation.
	// A notification never gets a response body, only a transport-level
	// accepted status.
	IsNotification bool

	// IsAuthenticated and IsAuthorized are supplied by the authentication
	// collaborator. Both default false: the gate fails closed.
	IsAuthenticated bool
	IsAuthorized    bool

	// MethodInvoked guards double invocation. Once true, no further
	// dispatch attempt may occur.
	MethodInvoked bool

	// Outcome is the call's result. A transport may pre-set an error
	// outcome to bypass the pipeline's front half.
	Outcome *Outcome

	// Response is the protocol-shaped envelope derived from Outcome.
	Response *Response

	// SerializedResponse is the final byte form, computed at most once. A
	// hook that populates it first wins; the Dispatcher never overwrites a
	// non-empty value. Empty for notifications.
	SerializedResponse []byte

	phase Phase
}

// NewCall builds a Call in PhaseCreated from transport-supplied context.
func NewCall(body []byte, header http.Header, origin string, ep *Endpoint) *Call {
	return &Call{
		RawBody:      body,
		Header:       header,
		RemoteOrigin: origin,
		Endpoint:     ep,
	}
}

// Phase returns the call's current life-cycle position.
func (c *Call) Phase() Phase {
	return c.phase
}

// advance moves the call forward through the life cycle. Only the pipeline
// calls it; a forbidden transition is a dispatcher bug and panics rather
// than becoming a request failure.
func (c *Call) advance(to Phase) {
	if !CanTransition(c.phase, to) {
		panic("rpc: invalid phase transition " + c.phase.String() + " -> " + to.String())
	}
	c.phase = to
}

// Resolve records a success value. The first populated outcome wins;
// resolving after the outcome is set is a no-op.
func (c *Call) Resolve(v any) {
	if c.Outcome != nil {
		return
	}
	c.Outcome = &Outcome{Value: v}
}

// Reject makes the classified form of err the call's outcome, replacing any
// earlier outcome. A failure raised at any stage becomes the call's new
// outcome, so Reject does not preserve what it overwrites.
func (c *Call) Reject(err error) {
	c.Outcome = &Outcome{Err: Classify(err)}
}

// Failed reports whether the call's outcome is an error.
func (c *Call) Failed() bool {
	return c.Outcome != nil && c.Outcome.Err != nil
}
