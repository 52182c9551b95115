package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v1.4.0", ""
	if got := String(); !strings.HasPrefix(got, "mtglibrary v1.4.0 "+runtime.GOOS) {
		t.Errorf("String() = %q", got)
	}

	Commit = "abc123"
	if got := String(); !strings.HasPrefix(got, "mtglibrary v1.4.0 (abc123) ") {
		t.Errorf("String() = %q", got)
	}
	if got := GetVersion(); got != "v1.4.0" {
		t.Errorf("GetVersion() = %q", got)
	}
	if got := UserAgent(); got != "MTGLibrary/v1.4.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}
