package version

import (
	"strings"
	"testing"

	promversion "github.com/prometheus/common/version"
)

func TestStringIncludesBuildInfo(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "assistant "+Version) {
		t.Errorf("Expected version prefix, got %q", s)
	}
	if !strings.Contains(s, Commit) {
		t.Errorf("Expected commit %q in %q", Commit, s)
	}
}

func TestPrometheusBuildInfoMatches(t *testing.T) {
	if promversion.Version != Version {
		t.Errorf("Expected build_info version %q, got %q", Version, promversion.Version)
	}
	if promversion.Revision != Commit {
		t.Errorf("Expected build_info revision %q, got %q", Commit, promversion.Revision)
	}
}
