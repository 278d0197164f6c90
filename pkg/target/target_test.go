package target

import (
	"strings"
	"testing"
)

func TestResolveScheme(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		force      string
		wantScheme string
		wantURL    string
	}{
		{"bare domain defaults to https", "example.com", "", "https", "https://example.com"},
		{"localhost defaults to http", "localhost", "", "http", "http://localhost"},
		{"loopback ip defaults to http", "127.0.0.1:3000", "", "http", "http://127.0.0.1:3000"},
		{"bracketed ipv6 loopback defaults to http", "[::1]:3000", "", "http", "http://[::1]:3000"},
		{"force http on domain", "example.com", "http", "http", "http://example.com"},
		{"force https on localhost", "localhost:8080", "https", "https", "https://localhost:8080"},
		{"explicit scheme wins over force", "https://example.com", "http", "https", "https://example.com"},
		{"explicit http kept", "http://example.com/app", "", "http", "http://example.com/app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt, err := Resolve(tt.raw, tt.force)
			if err != nil {
				t.Fatal(err)
			}
			if tgt.Scheme != tt.wantScheme {
				t.Errorf("scheme = %q, want %q", tgt.Scheme, tt.wantScheme)
			}
			if tgt.URL != tt.wantURL {
				t.Errorf("url = %q, want %q", tgt.URL, tt.wantURL)
			}
		})
	}
}

func TestResolveParts(t *testing.T) {
	tgt, err := Resolve("127.0.0.1:3000", "")
	if err != nil {
		t.Fatal(err)
	}
	if tgt.Host != "127.0.0.1" {
		t.Errorf("host = %q", tgt.Host)
	}
	if tgt.Port != "3000" {
		t.Errorf("port = %q", tgt.Port)
	}
	if tgt.Raw != "127.0.0.1:3000" {
		t.Errorf("raw = %q", tgt.Raw)
	}
}

func TestResolveErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://"} {
		if _, err := Resolve(raw, ""); err == nil {
			t.Errorf("Resolve(%q) expected error", raw)
		}
	}
}

func TestHost(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"example.com", "example.com"},
		{"EXAMPLE.com.", "example.com"},
		{"https://example.com:8443/path", "example.com"},
		{"127.0.0.1:3000", "127.0.0.1"},
		{"[::1]:3000", "::1"},
		{"http://[::1]:3000/app", "::1"},
		{"::1", "::1"},
		{"example.com/path/deep", "example.com"},
	}
	for _, tt := range tests {
		if got := Host(tt.raw); got != tt.want {
			t.Errorf("Host(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain host unchanged", "example.com", "example.com"},
		{"host with port keeps no colon", "127.0.0.1:3000", "127.0.0.1_3000"},
		{"url separators squashed", "https://example.com/a/b", "https___example.com_a_b"},
		{"empty falls back", "", "target"},
		{"only separators falls back", "://", "target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slug(tt.in)
			if got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if strings.ContainsAny(got, ":/\\") {
				t.Errorf("slug %q contains path-hostile bytes", got)
			}
		})
	}

	t.Run("caps length", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		if got := Slug(long); len(got) != 80 {
			t.Errorf("len = %d, want 80", len(got))
		}
	})
}
