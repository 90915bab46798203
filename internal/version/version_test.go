package version

import "testing"

func TestString(t *testing.T) {
	Version, Commit, Date = "v0.3.0", "abc123", "2026-10-01"
	t.Cleanup(func() { Version, Commit, Date = "dev", "unknown", "unknown" })

	if got := String(); got != "v0.3.0 (abc123, 2026-10-01)" {
		t.Errorf("String() = %q", got)
	}
	if got := UserAgent(); got != "consolidator/v0.3.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}
