package rpc

import (
	"errors"
	"testing"
)

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{"CreatedToDecoded", PhaseCreated, PhaseDecoded, true},
		{"DecodedToValidated", PhaseDecoded, PhaseValidated, true},
		{"ValidatedToAuthChecked", PhaseValidated, PhaseAuthChecked, true},
		{"AuthCheckedToDispatched", PhaseAuthChecked, PhaseDispatched, true},
		{"DispatchedToClassified", PhaseDispatched, PhaseClassified, true},
		{"ClassifiedToSerialized", PhaseClassified, PhaseSerialized, true},
		{"SerializedToDone", PhaseSerialized, PhaseDone, true},

		// Classification is reachable from any earlier phase.
		{"CreatedToClassified", PhaseCreated, PhaseClassified, true},
		{"DecodedToClassified", PhaseDecoded, PhaseClassified, true},
		{"ValidatedToClassified", PhaseValidated, PhaseClassified, true},
		{"AuthCheckedToClassified", PhaseAuthChecked, PhaseClassified, true},

		// Never backward, never skipping forward past classification.
		{"DecodedToCreated", PhaseDecoded, PhaseCreated, false},
		{"CreatedToDispatched", PhaseCreated, PhaseDispatched, false},
		{"CreatedToDone", PhaseCreated, PhaseDone, false},
		{"ClassifiedToDone", PhaseClassified, PhaseDone, false},
		{"ClassifiedToClassified", PhaseClassified, PhaseClassified, false},
		{"DoneAnywhere", PhaseDone, PhaseCreated, false},
		{"DoneToDone", PhaseDone, PhaseDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAdvancePanicsOnForbiddenTransition(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on a backward transition")
		}
	}()
	c := NewCall(nil, nil, "", nil)
	c.advance(PhaseDecoded)
	c.advance(PhaseCreated)
}

func TestResolveFirstOutcomeWins(t *testing.T) {
	c := NewCall(nil, nil, "", nil)
	c.Resolve(1)
	c.Resolve(2)
	if c.Outcome == nil || c.Outcome.Value != 1 {
		t.Errorf("got outcome %+v, want first resolve preserved", c.Outcome)
	}
}

func TestRejectReplacesOutcome(t *testing.T) {
	c := NewCall(nil, nil, "", nil)
	c.Resolve("fine")
	c.Reject(errors.New("late failure"))
	if !c.Failed() {
		t.Fatal("expected a failed call")
	}
	if c.Outcome.Err.Code != CodeInternalError {
		t.Errorf("got code %d, want %d", c.Outcome.Err.Code, CodeInternalError)
	}
	if c.Outcome.Err.Message != "late failure" {
		t.Errorf("got message %q, want %q", c.Outcome.Err.Message, "late failure")
	}
}

func TestRejectClassifies(t *testing.T) {
	c := NewCall(nil, nil, "", nil)
	c.Reject(NewNotAuthorized("not yours"))
	if c.Outcome.Err.Code != CodeNotAuthorized {
		t.Errorf("got code %d, want %d", c.Outcome.Err.Code, CodeNotAuthorized)
	}
}

func TestFailed(t *testing.T) {
	c := NewCall(nil, nil, "", nil)
	if c.Failed() {
		t.Error("fresh call reports failed")
	}
	c.Resolve(nil)
	if c.Failed() {
		t.Error("successful call reports failed")
	}
	c.Reject(errors.New("nope"))
	if !c.Failed() {
		t.Error("rejected call does not report failed")
	}
}

func TestNewCallStartsCreated(t *testing.T) {
	c := NewCall([]byte(`{}`), nil, "10.0.0.1", nil)
	if c.Phase() != PhaseCreated {
		t.Errorf("got phase %v, want %v", c.Phase(), PhaseCreated)
	}
	if c.IsAuthenticated || c.IsAuthorized {
		t.Error("auth booleans must default false")
	}
	if c.RemoteOrigin != "10.0.0.1" {
		t.Errorf("got origin %q, want %q", c.RemoteOrigin, "10.0.0.1")
	}
}
