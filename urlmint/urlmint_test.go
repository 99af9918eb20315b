package urlmint

import (
	"regexp"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "My Cool App", "my-cool-app"},
		{"already clean", "widgets", "widgets"},
		{"punctuation collapses", "foo_bar!!baz", "foo-bar-baz"},
		{"leading and trailing junk trimmed", "---Foo---", "foo"},
		{"all junk", "!!!", ""},
		{"longer than 20 chars is truncated", "a-very-long-project-name-indeed", "a-very-long-project"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := sanitize(c.in)
			if got != c.want {
				t.Errorf("sanitize(%q) = %q, want %q", c.in, got, c.want)
			}
			if len(got) > maxSanitizedLength {
				t.Errorf("sanitize(%q) = %q, exceeds %d characters", c.in, got, maxSanitizedLength)
			}
		})
	}
}

var suffixPattern = regexp.MustCompile(`^[a-z0-9]{5}$`)

func TestMint_ReturnsCandidateWhenFree(t *testing.T) {
	url, err := Mint("My App", "dep-1", "corvus.example.com", true, func(string) bool { return false })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "https://my-app-") {
		t.Errorf("url %q does not have expected scheme/prefix", url)
	}
	if !strings.HasSuffix(url, ".corvus.example.com") {
		t.Errorf("url %q does not have expected platform host suffix", url)
	}

	suffix := strings.TrimSuffix(strings.TrimPrefix(url, "https://my-app-"), ".corvus.example.com")
	if !suffixPattern.MatchString(suffix) {
		t.Errorf("suffix %q is not a 5-character alphanumeric string", suffix)
	}
}

func TestMint_UsesHTTPWhenNotUseHTTPS(t *testing.T) {
	url, err := Mint("App", "dep-1", "corvus.example.com", false, func(string) bool { return false })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		t.Errorf("url %q should use http scheme, not https", url)
	}
}

func TestMint_RetriesOnCollisionThenSucceeds(t *testing.T) {
	attempts := 0
	url, err := Mint("App", "dep-1", "corvus.example.com", true, func(string) bool {
		attempts++
		return attempts < 3
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 isTaken calls, got %d", attempts)
	}
	if url == "" {
		t.Error("expected a non-empty url")
	}
}

func TestMint_ExhaustsAttemptsFallsBackToDeploymentID(t *testing.T) {
	var seen []string
	url, err := Mint("App", "dep-42", "corvus.example.com", true, func(candidate string) bool {
		seen = append(seen, candidate)
		return candidate != "https://deploy-dep-42.corvus.example.com"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://deploy-dep-42.corvus.example.com" {
		t.Errorf("url = %q, want the deployment-id fallback", url)
	}
	if len(seen) != maxAttempts+1 {
		t.Errorf("expected %d isTaken calls (maxAttempts candidates + fallback), got %d", maxAttempts+1, len(seen))
	}
}

func TestMint_FallbackAlsoTakenFailsFatally(t *testing.T) {
	_, err := Mint("App", "dep-42", "corvus.example.com", true, func(string) bool { return true })
	if err == nil {
		t.Fatal("expected an error when even the fallback url is taken")
	}
	if !strings.Contains(err.Error(), "deploy-dep-42.corvus.example.com") {
		t.Errorf("error message %q should mention the fallback url", err.Error())
	}
}

func TestMint_EmptyProjectNameFallsBackToApp(t *testing.T) {
	url, err := Mint("!!!", "dep-1", "corvus.example.com", true, func(string) bool { return false })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "https://app-") {
		t.Errorf("url %q should fall back to the 'app' base name", url)
	}
}
