package validate

import (
	"errors"
	"strings"
	"testing"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	es, ok := AsErrors(err)
	if !ok {
		t.Fatalf("not a validation error: %v", err)
	}
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Field)
	}
	return out
}

func TestUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		require  bool
		want     []string
	}{
		{"valid", "alice", "alice@example.com", "hunter2hunter2", true, nil},
		{"update without password", "alice", "alice@example.com", "", false, nil},
		{"short username", "al", "alice@example.com", "hunter2hunter2", true, []string{"username"}},
		{"bad chars", "al ice", "alice@example.com", "hunter2hunter2", true, []string{"username"}},
		{"display-name email", "alice", "Alice <alice@example.com>", "hunter2hunter2", true, []string{"email"}},
		{"missing everything", "", "", "", true, []string{"username", "email", "password"}},
		{"long password", "alice", "alice@example.com", strings.Repeat("x", 73), true, []string{"password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fields(t, User(tt.username, tt.email, tt.password, tt.require))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("fields = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLock(t *testing.T) {
	if err := Lock("Pont Neuf", "x"); err != nil {
		t.Fatalf("valid lock: %v", err)
	}
	got := fields(t, Lock(" ", strings.Repeat("m", MaxMessageLength+1)))
	if strings.Join(got, ",") != "title,message" {
		t.Fatalf("fields = %v", got)
	}
	if got := fields(t, Lock(strings.Repeat("é", MaxTitleLength), "")); got != nil {
		t.Fatalf("title length should count runes: %v", got)
	}
}

func TestMedia(t *testing.T) {
	if err := Media("https://cdn.example.com/a.jpg", "image", ""); err != nil {
		t.Fatalf("valid media: %v", err)
	}
	tests := []struct {
		url, typ string
		want     string
	}{
		{"", "image", "url"},
		{"ftp://x/y", "image", "url"},
		{"/relative.jpg", "image", "url"},
		{"https://cdn.example.com/a.gif", "gif", "mediaType"},
	}
	for _, tt := range tests {
		got := fields(t, Media(tt.url, tt.typ, ""))
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("Media(%q,%q) fields = %v, want [%s]", tt.url, tt.typ, got, tt.want)
		}
	}
}

func TestOrderAndPage(t *testing.T) {
	if err := Order([]int64{3, 1, 2}); err != nil {
		t.Fatalf("valid order: %v", err)
	}
	if got := fields(t, Order([]int64{1, 0})); len(got) != 1 || got[0] != "ids[1]" {
		t.Fatalf("fields = %v", got)
	}
	if err := Order(nil); err == nil {
		t.Fatal("empty order accepted")
	}

	if l, o := Page(0, -5); l != 50 || o != 0 {
		t.Fatalf("Page(0,-5) = %d,%d", l, o)
	}
	if l, _ := Page(1000, 0); l != 200 {
		t.Fatalf("limit not capped: %d", l)
	}
}

func TestAsErrorsSingle(t *testing.T) {
	es, ok := AsErrors(&ValidationError{Field: "f", Message: "m"})
	if !ok || len(es) != 1 {
		t.Fatalf("AsErrors = %v, %v", es, ok)
	}
	if _, ok := AsErrors(errors.New("plain")); ok {
		t.Fatal("plain error treated as validation error")
	}
}
