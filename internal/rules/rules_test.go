package rules

import (
	"testing"
)

func TestSet_Match(t *testing.T) {
	set := NewSet([]string{"example.com", "News", "social"})

	tests := []struct {
		name        string
		url         string
		wantPattern string
		wantMatch   bool
	}{
		{"subdomain match", "https://sub.example.com/page", "example.com", true},
		{"case-insensitive url", "https://WWW.EXAMPLE.COM/", "example.com", true},
		{"case-insensitive pattern", "https://host/news/today", "News", true},
		{"keyword anywhere in url", "https://host/path?tab=social", "social", true},
		{"no match", "https://docs.golang.org/", "", false},
		{"empty url", "", "", false},
		{"first pattern in insertion order wins", "https://news.example.com/", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern, matched := set.Match(tt.url)
			if matched != tt.wantMatch {
				t.Fatalf("Match(%q) matched = %v, want %v", tt.url, matched, tt.wantMatch)
			}
			if pattern != tt.wantPattern {
				t.Errorf("Match(%q) pattern = %q, want %q", tt.url, pattern, tt.wantPattern)
			}
		})
	}
}

func TestSet_AddRejectsInvalid(t *testing.T) {
	set := NewSet(nil)

	if err := set.Add("example.com"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := set.Add("   "); err != ErrEmptyPattern {
		t.Errorf("Expected ErrEmptyPattern, got %v", err)
	}

	// Duplicate detection is case-insensitive
	if err := set.Add("EXAMPLE.com"); err != ErrDuplicatePattern {
		t.Errorf("Expected ErrDuplicatePattern, got %v", err)
	}

	if set.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", set.Len())
	}
}

func TestSet_OrderPreserved(t *testing.T) {
	set := NewSet(nil)
	for _, p := range []string{"c.com", "a.com", "b.com"} {
		if err := set.Add(p); err != nil {
			t.Fatalf("Add(%q) failed: %v", p, err)
		}
	}

	got := set.Entries()
	want := []string{"c.com", "a.com", "b.com"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Entries() = %v, want %v", got, want)
		}
	}

	if !set.Remove("A.COM") {
		t.Fatal("Remove should have found a.com")
	}
	got = set.Entries()
	if len(got) != 2 || got[0] != "c.com" || got[1] != "b.com" {
		t.Errorf("Entries() after remove = %v", got)
	}
}

func TestMatcher_CacheInvalidation(t *testing.T) {
	m, err := NewMatcher([]string{"example.com"})
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	url := "https://example.com/watch"

	if _, matched := m.Match(url); !matched {
		t.Fatal("Expected match before update")
	}

	// Cached verdicts must not survive a rule change
	m.Update([]string{"other.org"})

	if _, matched := m.Match(url); matched {
		t.Error("Expected no match after rules replaced")
	}
	if _, matched := m.Match("https://other.org/"); !matched {
		t.Error("Expected match against new rules")
	}
}
