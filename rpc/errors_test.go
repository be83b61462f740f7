package rpc

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode int
	}{
		{"ParseError", NewParseError("parse failed"), CodeParseError},
		{"InvalidRequest", NewInvalidRequest("invalid"), CodeInvalidRequest},
		{"MethodNotFound", NewMethodNotFound("not found"), CodeMethodNotFound},
		{"InvalidParams", NewInvalidParams("bad params"), CodeInvalidParams},
		{"InternalError", NewInternalError("internal"), CodeInternalError},
		{"NotAuthenticated", NewNotAuthenticated("who are you"), CodeNotAuthenticated},
		{"NotAuthorized", NewNotAuthorized("not yours"), CodeNotAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("got code %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Error() == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestClassifyPreservesProtocolErrors(t *testing.T) {
	orig := NewMethodNotFound("method not found: frobnicate")
	got := Classify(orig)
	if got != orig {
		t.Errorf("got %v, want the original error preserved", got)
	}
	if got.Code != CodeMethodNotFound {
		t.Errorf("got code %d, want %d", got.Code, CodeMethodNotFound)
	}
}

func TestClassifyUnwrapsWrappedProtocolErrors(t *testing.T) {
	orig := NewInvalidParams("bad params")
	wrapped := fmt.Errorf("during dispatch: %w", orig)
	got := Classify(wrapped)
	if got.Code != CodeInvalidParams {
		t.Errorf("got code %d, want %d", got.Code, CodeInvalidParams)
	}
}

func TestClassifyCoercesPlainErrors(t *testing.T) {
	got := Classify(errors.New("disk on fire"))
	if got.Code != CodeInternalError {
		t.Errorf("got code %d, want %d", got.Code, CodeInternalError)
	}
	if got.Message != "disk on fire" {
		t.Errorf("got message %q, want original message preserved", got.Message)
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
