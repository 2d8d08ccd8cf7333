package textutil_test

import (
	"testing"

	"courier/internal/textutil"
)

func TestSanitizeSegment(t *testing.T) {
	cases := map[string]string{
		"a.jpg":          "a.jpg",
		"  spaced.png  ": "spaced.png",
		"../etc/passwd":  "..-etc-passwd",
		"..":             "_",
		".":              "_",
		"c:\\x\\y.zip":   "c--x-y.zip",
		"what?<>|.txt":   "what.txt",
		"tab\tname":      "tabname",
		"":               "",
	}
	for in, want := range cases {
		if got := textutil.SanitizeSegment(in); got != want {
			t.Errorf("SanitizeSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
