// Command tick invokes the scheduler trigger endpoint. It is meant to be run
// from cron at the tick cadence; a non-zero exit signals either a transport
// failure or failed schedule executions, so the cron wrapper can alert.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type tickResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type envelope struct {
	Data  *tickResult `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base    string
		token   string
		now     string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("SCHEDULER_TRIGGER_TOKEN"), "trigger bearer token")
	flag.StringVar(&now, "now", "", "optional RFC 3339 tick override")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "HTTP client timeout")
	flag.Parse()

	if token == "" {
		log.Fatal("trigger token required (flag -token or SCHEDULER_TRIGGER_TOKEN)")
	}

	body := &bytes.Buffer{}
	if now != "" {
		if _, err := time.Parse(time.RFC3339, now); err != nil {
			log.Fatalf("invalid -now value: %v", err)
		}
		if err := json.NewEncoder(body).Encode(map[string]string{"now": now}); err != nil {
			log.Fatalf("encode request: %v", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/scheduler/tick", body)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("trigger request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var result envelope
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("decode response (status %d): %v", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || result.Data == nil {
		if result.Error != nil {
			log.Fatalf("tick rejected (status %d): %s %s", resp.StatusCode, result.Error.Code, result.Error.Message)
		}
		log.Fatalf("tick rejected (status %d)", resp.StatusCode)
	}

	fmt.Printf("processed=%d succeeded=%d failed=%d\n",
		result.Data.Processed, result.Data.Succeeded, result.Data.Failed)
	if result.Data.Failed > 0 {
		os.Exit(1)
	}
}
