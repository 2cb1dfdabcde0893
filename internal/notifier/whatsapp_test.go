package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

func TestWhatsAppConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  WhatsAppConfig
		wantErr string
	}{
		{"missing phone number id", WhatsAppConfig{AccessToken: "tok"}, "phone number ID is required"},
		{"missing token", WhatsAppConfig{PhoneNumberID: "1234"}, "access token is required"},
		{"http api url", WhatsAppConfig{PhoneNumberID: "1234", AccessToken: "tok", APIURL: "http://graph.local"}, "HTTPS"},
		{"valid", WhatsAppConfig{PhoneNumberID: "1234", AccessToken: "tok"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewWhatsAppNotifierDefaultsAPIURL(t *testing.T) {
	n, err := NewWhatsAppNotifier(WhatsAppConfig{PhoneNumberID: "1234", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("NewWhatsAppNotifier: %v", err)
	}
	if n.config.APIURL != DefaultWhatsAppAPIURL {
		t.Errorf("APIURL = %q, want %q", n.config.APIURL, DefaultWhatsAppAPIURL)
	}
	if n.Channel() != models.ChannelWhatsApp {
		t.Errorf("Channel() = %q", n.Channel())
	}
}

func TestWhatsAppNotifierSend(t *testing.T) {
	var mu sync.Mutex
	var received []whatsAppMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1234/messages" {
			t.Errorf("path = %q, want /1234/messages", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var m whatsAppMessage
		if err := json.Unmarshal(body, &m); err != nil {
			t.Errorf("failed to unmarshal payload: %v", err)
		}
		mu.Lock()
		received = append(received, m)
		mu.Unlock()
		if m.To == "15550000000" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer server.Close()

	n := &WhatsAppNotifier{
		config:     WhatsAppConfig{APIURL: server.URL, PhoneNumberID: "1234", AccessToken: "tok"},
		httpClient: server.Client(),
	}

	err := n.Send(context.Background(), testMessage(), []string{"+14155550100", "+15550000000"})
	if err == nil || !strings.Contains(err.Error(), "+15550000000") {
		t.Fatalf("expected error naming the failed number, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected both numbers to be attempted, got %d", len(received))
	}
	first := received[0]
	if first.MessagingProduct != "whatsapp" || first.Type != "text" || first.To != "14155550100" {
		t.Errorf("unexpected payload %+v", first)
	}
	if !strings.Contains(first.Text.Body, "Revenue drop") || !strings.Contains(first.Text.Body, "Revenue = 812.5") {
		t.Errorf("unexpected body %q", first.Text.Body)
	}
}
