// Package httprpc binds the rpc pipeline to HTTP.
//
// A Handler resolves the endpoint from the request path, buffers the
// body, runs the dispatcher, and maps the finished call onto HTTP status:
// 200 with a JSON body for answered calls, 204 for accepted
// notifications, 500 for failures (with the serialized error body unless
// the call was a notification).
package httprpc

import (
	"io"
	"net/http"
	"strings"

	"github.com/mnehpets/onerpc/rpc"
)

// Handler serves rpc calls over HTTP. Requests must be POST; a non-empty
// Content-Type must be application/json.
type Handler struct {
	registry   *rpc.Registry
	dispatcher *rpc.Dispatcher
}

// NewHandler builds a Handler serving every endpoint registered in
// registry through dispatcher.
func NewHandler(registry *rpc.Registry, dispatcher *rpc.Dispatcher) *Handler {
	return &Handler{registry: registry, dispatcher: dispatcher}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "rpc requires POST", http.StatusMethodNotAllowed)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	// An unknown path leaves the endpoint nil; the pipeline rejects it
	// with the request id echoed, which a transport-level 404 could not.
	ep, _ := h.registry.Lookup(r.URL.Path)

	body, readErr := io.ReadAll(r.Body)
	c := rpc.NewCall(body, r.Header, r.RemoteAddr, ep)
	if readErr != nil {
		c.Outcome = &rpc.Outcome{Err: rpc.NewInternalError("failed to read request body")}
	}
	h.dispatcher.Process(r.Context(), c)

	writeCall(w, c)
}

// writeCall maps the finished call onto the response.
func writeCall(w http.ResponseWriter, c *rpc.Call) {
	if !c.Failed() && c.IsNotification {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	status := http.StatusOK
	if c.Failed() {
		status = http.StatusInternalServerError
	}
	if len(c.SerializedResponse) == 0 {
		// Failed notification: the status carries the failure, no body.
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(c.SerializedResponse)
}
