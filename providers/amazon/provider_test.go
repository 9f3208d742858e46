package amazon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigResolve_FillsDefaults(t *testing.T) {
	cfg := Config{ClientID: "c"}.Resolve()
	if cfg.TokenURL != TokenURL || cfg.ProfileURL != ProfileURL || cfg.EventURL != EventURL {
		t.Fatalf("expected default urls, got %+v", cfg)
	}
	if cfg.Timeout <= 0 {
		t.Fatalf("expected default timeout")
	}
}

func TestNewIdentityProvider_SendsSecretInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("client_secret") != "s" {
			t.Errorf("expected client_secret in body, got %v", r.PostForm)
		}
		if _, _, ok := r.BasicAuth(); ok {
			t.Errorf("expected no basic auth")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":3600}`))
	}))
	defer server.Close()

	provider, err := NewIdentityProvider(Config{
		ClientID:     "c",
		ClientSecret: "s",
		TokenURL:     server.URL,
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("new identity provider: %v", err)
	}
	if _, err := provider.ExchangeCode(context.Background(), "code"); err != nil {
		t.Fatalf("exchange: %v", err)
	}
}
