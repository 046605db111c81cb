package version

import (
	"strings"
	"testing"
)

func TestInfoAndMap(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "v1.2.3"

	if got := Short(); got != "v1.2.3" {
		t.Errorf("Short() = %q, want v1.2.3", got)
	}
	if got := Info(); !strings.HasPrefix(got, "tpminsight v1.2.3 ") {
		t.Errorf("Info() = %q, want prefix %q", got, "tpminsight v1.2.3 ")
	}
	m := Map()
	if m["version"] != "v1.2.3" {
		t.Errorf("Map()[version] = %q, want v1.2.3", m["version"])
	}
	for _, k := range []string{"git_commit", "build_date", "go_version"} {
		if _, ok := m[k]; !ok {
			t.Errorf("Map() missing key %q", k)
		}
	}
}
