package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mnehpets/onerpc/auth"
	"github.com/mnehpets/onerpc/httprpc"
	"github.com/mnehpets/onerpc/rpc"
)

func main() {
	ep := rpc.NewEndpoint("/rpc")
	ep.Handle("add", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		sum := 0.0
		for _, p := range params {
			var n float64
			if err := json.Unmarshal(p, &n); err != nil {
				return nil, rpc.NewInvalidParams("numeric parameters required")
			}
			sum += n
		}
		return sum, nil
	})
	ep.Handle("echo", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		out := make([]any, 0, len(params))
		for _, p := range params {
			var v any
			if err := json.Unmarshal(p, &v); err != nil {
				return nil, rpc.NewInvalidParams("malformed parameter")
			}
			out = append(out, v)
		}
		return out, nil
	})
	ep.HandleIntrospection()

	registry := rpc.NewRegistry()
	if err := registry.Register("/rpc", ep); err != nil {
		log.Fatal(err)
	}

	handler := httprpc.NewHandler(registry, &rpc.Dispatcher{Auth: auth.AllowAll()})

	log.Println("Listening on :8080")
	log.Println(`Try: curl -s -X POST localhost:8080/rpc -H 'Content-Type: application/json' -d '{"id": 1, "methodName": "add", "params": [2, 3]}'`)
	log.Fatal(http.ListenAndServe(":8080", handler))
}
