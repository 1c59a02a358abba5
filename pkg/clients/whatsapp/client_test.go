package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mamadbah2/farmcore/internal/config"
)

func TestSendText(t *testing.T) {
	var got textMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v20.0/12345/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.WhatsAppConfig{AccessToken: "secret", PhoneNumberID: "12345", BaseURL: srv.URL + "/", APIVersion: "v20.0"})
	id, err := c.SendText(context.Background(), "34600000000", "hola")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "wamid.1" {
		t.Fatalf("unexpected message id %q", id)
	}
	if got.To != "34600000000" || got.Text.Body != "hola" || got.MessagingProduct != "whatsapp" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSendTextSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	c := NewClient(config.WhatsAppConfig{AccessToken: "secret", PhoneNumberID: "1", BaseURL: srv.URL, APIVersion: "v20.0"})
	_, err := c.SendText(context.Background(), "1", "x")
	if err == nil || !strings.Contains(err.Error(), "code=100") {
		t.Fatalf("expected api error with code, got %v", err)
	}
}
