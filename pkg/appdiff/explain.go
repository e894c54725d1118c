package appdiff

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// ExplainChange renders a unified diff of two canonical entry forms. It only
// applies to text content; for binary entries it reports false and the
// caller falls back to naming the path.
func ExplainChange(entryPath string, oldData, newData []byte) (string, bool) {
	if !isText(oldData) || !isText(newData) {
		return "", false
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldData)),
		B:        difflib.SplitLines(string(newData)),
		FromFile: fmt.Sprintf("old/%s", entryPath),
		ToFile:   fmt.Sprintf("new/%s", entryPath),
		Context:  3,
	})
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}

func isText(data []byte) bool {
	return utf8.Valid(data) && !bytes.ContainsRune(data, 0)
}
