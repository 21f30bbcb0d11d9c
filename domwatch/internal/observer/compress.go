package observer

import (
	"strings"

	"github.com/hazyhaar/dmitli/domwatch/mutation"
)

// compress folds noise inside a single batch:
//   - N consecutive attr on same (xpath, name) → keep last (with old_value from first)
//   - N consecutive text on same xpath → keep last
//   - insert/remove never compressed (structurally significant, and emitters
//     count them)
func compress(records []mutation.Record) []mutation.Record {
	if len(records) <= 1 {
		return records
	}

	result := make([]mutation.Record, 0, len(records))

	for i := 0; i < len(records); i++ {
		rec := records[i]

		switch rec.Op {
		case mutation.OpAttr, mutation.OpText:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) &&
				records[j].Op == rec.Op &&
				records[j].XPath == rec.XPath &&
				records[j].Name == rec.Name {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		default:
			result = append(result, rec)
		}
	}

	return result
}

// dropNested removes inserts that sit below another insert of the same batch.
// The outer record's html already carries them.
func dropNested(records []mutation.Record) []mutation.Record {
	var roots []string
	for _, r := range records {
		if r.Op == mutation.OpInsert {
			roots = append(roots, r.XPath+"/")
		}
	}
	if len(roots) <= 1 {
		return records
	}

	result := make([]mutation.Record, 0, len(records))
	for _, r := range records {
		if r.Op == mutation.OpInsert && under(r.XPath, roots) {
			continue
		}
		result = append(result, r)
	}
	return result
}

func under(xpath string, roots []string) bool {
	for _, root := range roots {
		if strings.HasPrefix(xpath, root) {
			return true
		}
	}
	return false
}
