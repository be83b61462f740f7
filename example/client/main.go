package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mnehpets/onerpc/rpc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	tokenURL := os.Getenv("OAUTH_TOKEN_URL")
	clientID := os.Getenv("OAUTH_CLIENT_ID")
	clientSecret := os.Getenv("OAUTH_CLIENT_SECRET")
	if tokenURL == "" || clientID == "" || clientSecret == "" {
		log.Fatal("OAUTH_TOKEN_URL, OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET must be set")
	}

	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		rpcURL = "http://localhost:8080/rpc"
	}

	// The client-credentials flow fetches and refreshes access tokens; the
	// returned http.Client attaches them as Bearer headers.
	ccfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"add"},
	}
	ctx := context.Background()
	client := ccfg.Client(ctx)

	result, err := call(ctx, client, rpcURL, 1, "add", []any{2, 3})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("add(2, 3) = %s\n", result)
}

func call(ctx context.Context, client *http.Client, url string, id any, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"id":         id,
		"methodName": method,
		"params":     params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var reply struct {
		ID     any             `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *rpc.Error      `json:"error"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("malformed response %q: %w", data, err)
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("call failed: %d %s", reply.Error.Code, reply.Error.Message)
	}
	return reply.Result, nil
}
