package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-smarthome/core"
	"github.com/goliatone/go-smarthome/protocol"
)

func TestClient_SendChangeReport(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		EventURL:   server.URL,
		HTTPClient: server.Client(),
		Now:        func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.SendChangeReport(context.Background(), core.ChangeReport{
		MessageID:   "m-1",
		AccessToken: "fresh",
		EndpointID:  "HondaGarageDoor-400605",
		Properties: []core.PropertyState{
			{Namespace: protocol.NamespaceContactSensor, Name: protocol.PropertyDetectionState, Value: protocol.DetectionStateDetected},
		},
	})
	if err != nil {
		t.Fatalf("send change report: %v", err)
	}

	event := captured["event"].(map[string]any)
	header := event["header"].(map[string]any)
	if header["name"] != protocol.NameChangeReport || header["messageId"] != "m-1" {
		t.Fatalf("unexpected header %+v", header)
	}
	endpoint := event["endpoint"].(map[string]any)
	if endpoint["endpointId"] != "HondaGarageDoor-400605" {
		t.Fatalf("unexpected endpoint %+v", endpoint)
	}
	change := event["payload"].(map[string]any)["change"].(map[string]any)
	if change["cause"].(map[string]any)["type"] != protocol.CausePhysicalInteraction {
		t.Fatalf("unexpected cause %+v", change)
	}
}

func TestClient_NonSuccessCarriesStatusAndExcerpt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"payload":{"code":"SKILL_DISABLED_EXCEPTION"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{EventURL: server.URL, HTTPClient: server.Client()})
	err := client.SendChangeReport(context.Background(), core.ChangeReport{AccessToken: "tok", EndpointID: "e1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "SKILL_DISABLED_EXCEPTION") {
		t.Fatalf("expected status and excerpt, got %v", err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %v", err)
	}
}

func TestClient_ValidatesReport(t *testing.T) {
	client, err := NewClient(Config{EventURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.SendChangeReport(context.Background(), core.ChangeReport{EndpointID: "e1"}); !core.HasErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for missing token, got %v", err)
	}
	if err := client.SendChangeReport(context.Background(), core.ChangeReport{AccessToken: "t"}); !core.HasErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for missing endpoint, got %v", err)
	}
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected event url error")
	}
}
