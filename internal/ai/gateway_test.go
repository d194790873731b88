package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestQuery_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req proxyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode proxy request: %v", err)
		}
		if req.Prompt != "what is the weather" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(proxyResponse{Response: "cloudy"})
	}))
	defer srv.Close()

	got := NewGateway(srv.URL, time.Second).Query(context.Background(), "what is the weather")
	if got != "cloudy" {
		t.Errorf("Query = %q, want cloudy", got)
	}
}

func TestQuery_EmptyResponsePassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":""}`))
	}))
	defer srv.Close()

	if got := NewGateway(srv.URL, time.Second).Query(context.Background(), "p"); got != "" {
		t.Errorf("Query = %q, want empty (caller substitutes placeholder)", got)
	}
}

func TestQuery_FailuresReturnDisplayableError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"upstream 502 with error body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"Failed to contact Gemini API","details":"boom"}`))
		}},
		{"upstream 502 no body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed success body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{broken`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got := NewGateway(srv.URL, time.Second).Query(context.Background(), "p")
			if got == "" {
				t.Fatal("Query returned empty string on failure, want displayable error")
			}
			if !strings.HasPrefix(got, "Error querying Gemini: ") {
				t.Errorf("Query = %q, want error prefix", got)
			}
		})
	}

	// Dead host: still displayable, never a panic or empty string.
	got := NewGateway("http://127.0.0.1:1", 500*time.Millisecond).Query(context.Background(), "p")
	if !strings.HasPrefix(got, "Error querying Gemini: ") {
		t.Errorf("Query against dead host = %q", got)
	}
}
