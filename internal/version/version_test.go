package version

import (
	"strings"
	"testing"
)

func TestSummary(t *testing.T) {
	old := [2]string{Version, GitCommit}
	defer func() { Version, GitCommit = old[0], old[1] }()

	Version = "1.2.3"
	GitCommit = "0123456789abcdef"

	s := Summary()
	if !strings.HasPrefix(s, "1.2.3 (commit 0123456,") {
		t.Errorf("Summary = %q", s)
	}
	if got := Get(); got.GitCommit != GitCommit || got.GoVersion == "" {
		t.Errorf("Get = %+v", got)
	}
}
