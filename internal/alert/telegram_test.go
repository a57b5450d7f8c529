package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTelegram_DisabledIsNoOp(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		chatID string
	}{
		{"no token", "", "42"},
		{"no chat id", "123:abc", ""},
		{"neither", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewTelegram(tt.token, tt.chatID)
			if n.Enabled() {
				t.Error("Enabled() = true, want false")
			}
			if err := n.Notify(context.Background(), "boom"); err != nil {
				t.Errorf("Notify() error = %v, want nil for disabled notifier", err)
			}
		})
	}
}

func TestTelegram_SendsMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegram("123:abc", "42")
	n.apiURL = srv.URL

	if err := n.Notify(context.Background(), "refresh failed"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "refresh failed" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestTelegram_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegram("123:abc", "42")
	n.apiURL = srv.URL

	if err := n.Notify(context.Background(), "boom"); err == nil {
		t.Fatal("Notify() expected error for non-200 API response")
	}
}
