package version

import (
	"strings"
	"testing"
)

func TestBanner(t *testing.T) {
	defer func(v, c, d string) { Version, GitCommit, BuildDate = v, c, d }(Version, GitCommit, BuildDate)

	Version, GitCommit, BuildDate = "dev", "unknown", "unknown"
	if got := Banner(); !strings.HasPrefix(got, "snapcam dev ") || strings.Contains(got, "(") {
		t.Errorf("Banner() = %q", got)
	}

	Version, GitCommit, BuildDate = "1.2.0", "0123456789abcdef", "2025-01-27"
	if got := Banner(); !strings.HasPrefix(got, "snapcam 1.2.0 (0123456, built 2025-01-27) ") {
		t.Errorf("Banner() = %q", got)
	}
}
