package imagepipe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cian-scraper/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := utils.NewLogger()
	retry := &utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: logger}
	c := NewClient("acme", "cian-images", "download-images.yml", "gh-token", retry, logger)
	c.baseURL = srv.URL
	return c, srv
}

func TestSubmitDispatchesWorkflow(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs"`
	}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	accepted, err := c.Submit(context.Background(), []string{"101", "102", "103"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if accepted != 3 {
		t.Errorf("accepted = %d; want 3", accepted)
	}

	wantPath := "/repos/acme/cian-images/actions/workflows/download-images.yml/dispatches"
	if gotPath != wantPath {
		t.Errorf("path = %q; want %q", gotPath, wantPath)
	}
	if gotAuth != "Bearer gh-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotPayload.Ref != "main" {
		t.Errorf("ref = %q; want main", gotPayload.Ref)
	}
	if gotPayload.Inputs["listing_ids"] != "101,102,103" {
		t.Errorf("listing_ids = %q", gotPayload.Inputs["listing_ids"])
	}
	if gotPayload.Inputs["batch_size"] != "5" || gotPayload.Inputs["max_retries"] != "3" {
		t.Errorf("inputs = %v", gotPayload.Inputs)
	}
}

func TestSubmitRetriesUntilAccepted(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	accepted, err := c.Submit(context.Background(), []string{"101"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted = %d; want 1", accepted)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d; want 3", attempts)
	}
}

func TestSubmitFailsAfterExhaustedRetries(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Submit(context.Background(), []string{"101"})
	if err == nil {
		t.Fatal("expected error on persistent 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry the status: %v", err)
	}
}

func TestSubmitEmptyBatchIsNoop(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	accepted, err := c.Submit(context.Background(), nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if accepted != 0 || called {
		t.Errorf("empty batch: accepted=%d called=%v", accepted, called)
	}
}

func TestEnabledRequiresCredentials(t *testing.T) {
	logger := utils.NewLogger()
	retry := &utils.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, Logger: logger}

	tests := []struct {
		name               string
		owner, repo, token string
		want               bool
	}{
		{"complete", "acme", "cian-images", "tok", true},
		{"no token", "acme", "cian-images", "", false},
		{"no owner", "", "cian-images", "tok", false},
		{"no repo", "acme", "", "tok", false},
	}
	for _, tt := range tests {
		c := NewClient(tt.owner, tt.repo, "download-images.yml", tt.token, retry, logger)
		if got := c.Enabled(); got != tt.want {
			t.Errorf("%s: Enabled() = %v; want %v", tt.name, got, tt.want)
		}
	}
}
