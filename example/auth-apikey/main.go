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
	ep.Handle("whoami", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		return map[string]bool{
			"authenticated": call.IsAuthenticated,
			"authorized":    call.IsAuthorized,
		}, nil
	})

	registry := rpc.NewRegistry()
	if err := registry.Register("/rpc", ep); err != nil {
		log.Fatal(err)
	}

	// Two keys: sk-admin may call anything, sk-adder only "add".
	keyring := auth.NewKeyring(
		auth.Key{Secret: "sk-admin", Subject: "admin"},
		auth.Key{Secret: "sk-adder", Subject: "adder", Methods: []string{"add"}},
	)

	handler := httprpc.NewHandler(registry, &rpc.Dispatcher{Auth: keyring})

	log.Println("Listening on :8080")
	log.Println(`Try: curl -s -X POST localhost:8080/rpc -H 'Authorization: Bearer sk-adder' -H 'Content-Type: application/json' -d '{"id": 1, "methodName": "add", "params": [2, 3]}'`)
	log.Println(`     the same with methodName "whoami" fails with -32002 for sk-adder, succeeds for sk-admin`)
	log.Fatal(http.ListenAndServe(":8080", handler))
}
