package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

func TestFetchJSONPolicy(t *testing.T) {
	payload := `{"deny":["(?i)evilbot"],"ownedDomains":["lovelock.app","share.lovelock.app"]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nacos/v1/cs/configs" || r.URL.Query().Get("dataId") != "bot-policy" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-MD5", "v1")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	src := NewNacosSource(config.NacosCfg{
		Addr:   server.URL,
		DataID: "bot-policy",
		Group:  "DEFAULT_GROUP",
		Format: "json",
	})

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got.Version != "v1" {
		t.Fatalf("version = %q", got.Version)
	}
	if len(got.Policy.Deny) != 1 || len(got.Policy.OwnedDomains) != 2 {
		t.Fatalf("unexpected policy: %#v", got.Policy)
	}
}

func TestFetchYAMLWrapper(t *testing.T) {
	payload := "bot:\n  minUserAgentLength: 12\n  allow:\n    - '^LoveLock/'\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	src := NewNacosSource(config.NacosCfg{
		Addr:   server.URL,
		DataID: "bot-policy",
		Format: "yaml",
	})

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got.Policy.MinUserAgentLength != 12 || len(got.Policy.Allow) != 1 {
		t.Fatalf("unexpected policy: %#v", got.Policy)
	}
	if got.Version == "" {
		t.Fatalf("expected version to be set")
	}
}

func TestFetchAutoDetect(t *testing.T) {
	payload := "desktop:\n  - '^Mozilla/5\\.0'\nrequiredHeaders: [Accept-Language]\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	src := NewNacosSource(config.NacosCfg{Addr: server.URL, DataID: "bot-policy"})
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(got.Policy.Desktop) != 1 || got.Policy.RequiredHeaders[0] != "Accept-Language" {
		t.Fatalf("unexpected policy: %#v", got.Policy)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		format  string
		wantErr string
	}{
		{"http error", http.StatusForbidden, "denied", "", "nacos fetch failed"},
		{"empty body", http.StatusOK, "  ", "", "empty policy payload"},
		{"bad json", http.StatusOK, "{not json", "json", "invalid json"},
		{"no known fields", http.StatusOK, `{"other":1}`, "", "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := NewNacosSource(config.NacosCfg{Addr: server.URL, DataID: "x", Format: tt.format})
			_, err := src.Fetch(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestFetchDisabled(t *testing.T) {
	if _, err := NewNacosSource(config.NacosCfg{}).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for disabled source")
	}
}
