package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerateReply_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Fatalf("missing api key header")
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "quanto custa?" {
			t.Fatalf("unexpected contents: %+v", req.Contents)
		}
		if !strings.Contains(req.SystemInstruction.Parts[0].Text, "BLUE ALUGUEL") {
			t.Fatalf("system instruction must carry the store name")
		}

		resp := generateResponse{}
		resp.Candidates = []struct {
			Content content `json:"content"`
		}{
			{Content: content{Parts: []part{{Text: "O plano mensal sai por R$ 69,90! 💙"}}}},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := client.GenerateReply(ctx, "quanto custa?", "BLUE ALUGUEL")
	if err != nil {
		t.Fatalf("GenerateReply error: %v", err)
	}
	if got != "O plano mensal sai por R$ 69,90! 💙" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestGenerateReply_EmptyCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", "")

	got, err := client.GenerateReply(context.Background(), "oi", "loja")
	if err != nil {
		t.Fatalf("GenerateReply error: %v", err)
	}
	if got != emptyReply {
		t.Fatalf("empty candidates must fall back to the stock reply, got %q", got)
	}
}

func TestGenerateReply_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", "")

	_, err := client.GenerateReply(context.Background(), "oi", "loja")
	if err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestGenerateReply_NotConfigured(t *testing.T) {
	client := NewClient("", "", "")

	_, err := client.GenerateReply(context.Background(), "oi", "loja")
	if err == nil {
		t.Fatalf("expected error without api key")
	}
}
