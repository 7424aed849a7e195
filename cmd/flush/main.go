// Package main provides a CLI tool for flushing gateway schema caches.
// It calls the administrative flush endpoint of a running gateway.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Gateway base URL")
	databaseID := flag.String("database-id", "", "Database id to flush. Empty flushes everything.")
	secret := flag.String("secret", os.Getenv("SCHEMAGATE_ADMIN_SECRET"), "Admin secret (defaults to SCHEMAGATE_ADMIN_SECRET)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "error: admin secret required (-secret or SCHEMAGATE_ADMIN_SECRET)")
		os.Exit(2)
	}

	body, err := json.Marshal(map[string]string{"databaseId": *databaseID})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *addr+"/admin/flush", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+*secret)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close() //nolint:errcheck

	out, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "flush failed: %s: %s\n", resp.Status, out)
		os.Exit(1)
	}
	fmt.Printf("%s\n", out)
}
