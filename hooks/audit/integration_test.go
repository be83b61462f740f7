//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mnehpets/onerpc/auth"
	"github.com/mnehpets/onerpc/rpc"
)

// testDBEnv returns the database URL for integration tests; skips the test
// if not set.
func testDBEnv(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping audit integration tests")
	}
	return url
}

func TestIntegrationRecorderInserts(t *testing.T) {
	ctx := context.Background()
	rec, err := New(ctx, testDBEnv(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer rec.Close()

	ep := rpc.NewEndpoint("/audit-it")
	ep.Handle("ping", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		return "pong", nil
	})

	d := &rpc.Dispatcher{Auth: auth.AllowAll()}
	d.AddHook(rec.Hook())

	// A unique origin isolates this run's rows from earlier runs.
	origin := fmt.Sprintf("it-%d", time.Now().UnixNano())
	c := rpc.NewCall([]byte(`{"id": 1, "methodName": "ping"}`), nil, origin, ep)
	d.Process(ctx, c)

	var count int
	var code int
	err = rec.pool.QueryRow(ctx,
		"SELECT count(*), coalesce(min(code), -1) FROM rpc_calls WHERE origin = $1",
		origin).Scan(&count, &code)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("audit rows = %d, want 1", count)
	}
	if code != 0 {
		t.Errorf("audit code = %d, want 0", code)
	}
}

func TestIntegrationNewBadDSN(t *testing.T) {
	testDBEnv(t)
	if _, err := New(context.Background(), "postgres://nobody@127.0.0.1:1/nope"); err == nil {
		t.Fatal("expected connection error for unreachable database")
	}
}
