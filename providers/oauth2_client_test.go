package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func TestOAuth2Client_RefreshSendsFormBody(t *testing.T) {
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		want := map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": "r1",
			"client_id":     "client-1",
			"client_secret": "secret-1",
		}
		for key, value := range want {
			if got := r.PostForm.Get(key); got != value {
				t.Errorf("expected %s=%q, got %q", key, value, got)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","token_type":"bearer","expires_in":3600}`))
	})

	client, err := NewOAuth2Client(OAuth2Config{
		TokenURL:           server.URL,
		ClientID:           "client-1",
		ClientSecret:       "secret-1",
		ClientSecretInBody: true,
		HTTPClient:         server.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	grant, err := client.Refresh(context.Background(), " r1 ")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if grant.AccessToken != "a2" || grant.RefreshToken != "r2" || grant.ExpiresIn != 3600 {
		t.Fatalf("unexpected grant %+v", grant)
	}
}

func TestOAuth2Client_ExchangeCodeUsesBasicAuthWhenConfigured(t *testing.T) {
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-1" || pass != "secret-1" {
			t.Errorf("expected basic auth, got %q %q %v", user, pass, ok)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "code-1" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		if r.PostForm.Get("client_secret") != "" {
			t.Errorf("expected no client_secret in body")
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte(`access_token=a1&refresh_token=r1&expires_in=120`))
	})

	client, err := NewOAuth2Client(OAuth2Config{
		TokenURL:     server.URL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	grant, err := client.ExchangeCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if grant.AccessToken != "a1" || grant.ExpiresIn != 120 || grant.TokenType != "bearer" {
		t.Fatalf("unexpected grant %+v", grant)
	}
}

func TestOAuth2Client_ErrorResponses(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"http error":     {status: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"expired"}`, want: "expired"},
		"error in body":  {status: http.StatusOK, body: `{"error":"invalid_client"}`, want: "invalid_client"},
		"missing access": {status: http.StatusOK, body: `{"refresh_token":"r"}`, want: "missing access token"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			server := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			client, err := NewOAuth2Client(OAuth2Config{TokenURL: server.URL, ClientID: "c", HTTPClient: server.Client()})
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.Refresh(context.Background(), "r")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestOAuth2Client_TimeoutFails(t *testing.T) {
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client, err := NewOAuth2Client(OAuth2Config{
		TokenURL:            server.URL,
		ClientID:            "c",
		TokenRequestTimeout: 20 * time.Millisecond,
		HTTPClient:          server.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Refresh(context.Background(), "r"); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNewOAuth2Client_Validates(t *testing.T) {
	if _, err := NewOAuth2Client(OAuth2Config{ClientID: "c"}); err == nil {
		t.Fatalf("expected token url error")
	}
	if _, err := NewOAuth2Client(OAuth2Config{TokenURL: "https://example.test"}); err == nil {
		t.Fatalf("expected client id error")
	}
	client, _ := NewOAuth2Client(OAuth2Config{TokenURL: "https://example.test", ClientID: "c"})
	if _, err := client.ExchangeCode(context.Background(), ""); err == nil {
		t.Fatalf("expected code required error")
	}
}
