package cli

import (
	"strconv"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// changeSummary describes how content changed, e.g. "+12 -3 chars".
func changeSummary(before, after string) string {
	if before == after {
		return "content unchanged"
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var added, removed int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += utf8.RuneCountInString(d.Text)
		}
	}
	return "+" + strconv.Itoa(added) + " -" + strconv.Itoa(removed) + " chars"
}
