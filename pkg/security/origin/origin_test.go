package origin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		referer string
		allow   []string
		bypass  bool
		want    bool
	}{
		{"foreign origin rejected", "https://evil.com", "", []string{"https://myapp.com"}, false, false},
		{"exact origin", "https://myapp.com", "", []string{"https://myapp.com"}, false, true},
		{"exact origin case insensitive", "HTTPS://MyApp.com/", "", []string{"https://myapp.com"}, false, true},
		{"subdomain wildcard", "https://sub.myapp.com", "", []string{"*.myapp.com"}, false, true},
		{"nested subdomain wildcard", "https://a.b.myapp.com", "", []string{"*.myapp.com"}, false, true},
		{"apex https for wildcard", "https://myapp.com", "", []string{"*.myapp.com"}, false, true},
		{"apex http for wildcard", "http://myapp.com", "", []string{"*.myapp.com"}, false, true},
		{"subdomain with port not covered", "https://sub.myapp.com:8443", "", []string{"*.myapp.com"}, false, false},
		{"subdomain with port in pattern", "https://sub.myapp.com:8443", "", []string{"*.myapp.com:8443"}, false, true},
		{"subdomain on other port than pattern", "https://sub.myapp.com:9000", "", []string{"*.myapp.com:8443"}, false, false},
		{"suffix attack rejected", "https://myapp.com.attacker.net", "", []string{"*.myapp.com"}, false, false},
		{"lookalike domain rejected", "https://evilmyapp.com", "", []string{"*.myapp.com"}, false, false},
		{"fragment smuggling rejected", "https://attacker.net#.myapp.com", "", []string{"*.myapp.com"}, false, false},
		{"userinfo smuggling rejected", "https://x.myapp.com@attacker.net", "", []string{"*.myapp.com"}, false, false},
		{"star matches anything", "https://anything.example", "", []string{"*"}, false, true},
		{"no contains fallback", "https://myapp.com.evil.net", "", []string{"https://myapp.com"}, false, false},
		{"referer used when origin missing", "", "https://myapp.com/diary?day=1", []string{"https://myapp.com"}, false, true},
		{"referer foreign", "", "https://evil.com/page", []string{"https://myapp.com"}, false, false},
		{"origin preferred over referer", "https://evil.com", "https://myapp.com/", []string{"https://myapp.com"}, false, false},
		{"no headers rejected", "", "", []string{"*"}, false, false},
		{"no headers with bypass", "", "", []string{"https://myapp.com"}, true, true},
		{"garbage referer fails closed", "", "not a url", []string{"*"}, true, false},
		{"empty allow list", "https://myapp.com", "", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsAllowed(tt.origin, tt.referer, NewAllowList(tt.allow), tt.bypass)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		referer string
		want    string
	}{
		{"https://myapp.com/diary/2026-01-01", "https://myapp.com"},
		{"http://localhost:3000/", "http://localhost:3000"},
		{"HTTPS://MyApp.COM/x", "https://myapp.com"},
		{"", ""},
		{"/relative/path", ""},
		{"ftp://files.example.com/a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.referer, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginOf(tt.referer))
		})
	}
}

func TestNewAllowList_Normalizes(t *testing.T) {
	got := NewAllowList([]string{" https://MyApp.com/ ", "", "*.Example.org"})
	assert.Equal(t, AllowList{"https://myapp.com", "*.example.org"}, got)
	assert.Equal(t, []string{"https://myapp.com", "*.example.org"}, got.GetAllowedOrigins())
}
