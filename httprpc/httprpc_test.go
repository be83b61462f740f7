package httprpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnehpets/onerpc/auth"
	"github.com/mnehpets/onerpc/rpc"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	ep := rpc.NewEndpoint("/rpc")
	ep.Handle("add", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		var a, b int
		if len(params) != 2 {
			return nil, rpc.NewInvalidParams("add takes two params")
		}
		if err := json.Unmarshal(params[0], &a); err != nil {
			return nil, rpc.NewInvalidParams("a must be a number")
		}
		if err := json.Unmarshal(params[1], &b); err != nil {
			return nil, rpc.NewInvalidParams("b must be a number")
		}
		return a + b, nil
	})

	reg := rpc.NewRegistry()
	if err := reg.Register("/rpc", ep); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return NewHandler(reg, &rpc.Dispatcher{Auth: auth.AllowAll()})
}

func post(t *testing.T, h *Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestServeCall(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/rpc", `{"id":1,"methodName":"add","params":[2,3]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("got Content-Type %q, want application/json", ct)
	}
	resp := decodeBody(t, w)
	if resp["id"].(float64) != 1 {
		t.Errorf("got id %v, want 1", resp["id"])
	}
	if resp["result"].(float64) != 5 {
		t.Errorf("got result %v, want 5", resp["result"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	r := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("got status %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if allow := w.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("got Allow %q, want POST", allow)
	}
}

func TestUnsupportedMediaType(t *testing.T) {
	h := newTestHandler(t)
	r := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("got status %d, want %d", w.Code, http.StatusUnsupportedMediaType)
	}
}

func TestMissingContentTypeAccepted(t *testing.T) {
	h := newTestHandler(t)
	r := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{"id":1,"methodName":"add","params":[2,3]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNotificationNoContent(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/rpc", `{"methodName":"add","params":[2,3]}`)

	if w.Code != http.StatusNoContent {
		t.Errorf("got status %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("got body %q, want none", w.Body.String())
	}
}

func TestUnknownPath(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/nope", `{"id":7,"methodName":"add","params":[2,3]}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	resp := decodeBody(t, w)
	if resp["id"].(float64) != 7 {
		t.Errorf("got id %v, want 7", resp["id"])
	}
	errObj := resp["error"].(map[string]any)
	if int(errObj["code"].(float64)) != rpc.CodeMethodNotFound {
		t.Errorf("got error code %v, want %d", errObj["code"], rpc.CodeMethodNotFound)
	}
}

func TestErrorStatus(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/rpc", `{"id":1,"methodName":"missing"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	resp := decodeBody(t, w)
	errObj := resp["error"].(map[string]any)
	if int(errObj["code"].(float64)) != rpc.CodeMethodNotFound {
		t.Errorf("got error code %v, want %d", errObj["code"], rpc.CodeMethodNotFound)
	}
}

func TestFailedNotificationBareStatus(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/rpc", `{"methodName":"missing"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if w.Body.Len() != 0 {
		t.Errorf("got body %q, want none for a failed notification", w.Body.String())
	}
}

func TestParseErrorNullID(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/rpc", `{"id":1,`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	resp := decodeBody(t, w)
	if resp["id"] != nil {
		t.Errorf("got id %v, want null", resp["id"])
	}
	errObj := resp["error"].(map[string]any)
	if int(errObj["code"].(float64)) != rpc.CodeParseError {
		t.Errorf("got error code %v, want %d", errObj["code"], rpc.CodeParseError)
	}
}

func TestAuthRejectedStatus(t *testing.T) {
	ep := rpc.NewEndpoint("/rpc")
	ep.Handle("secret", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		return "classified", nil
	})
	reg := rpc.NewRegistry()
	if err := reg.Register("/rpc", ep); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	h := NewHandler(reg, &rpc.Dispatcher{})

	w := post(t, h, "/rpc", `{"id":1,"methodName":"secret"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	resp := decodeBody(t, w)
	errObj := resp["error"].(map[string]any)
	if int(errObj["code"].(float64)) != rpc.CodeNotAuthenticated {
		t.Errorf("got error code %v, want %d", errObj["code"], rpc.CodeNotAuthenticated)
	}
}
