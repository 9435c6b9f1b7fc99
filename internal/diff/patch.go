package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/nivostack/buildhub/internal/models"
)

// DefaultContext is the number of context lines around each hunk.
const DefaultContext = 3

// Patch renders a unified text patch between two snapshots. Each item is
// printed as a "# key" header followed by its indented JSON value, in key
// order, so hunks line up with ChangeRecords. An empty string means the
// snapshots render identically. A negative context uses DefaultContext.
func Patch(fromName, toName string, oldItems, newItems []models.SnapshotItem, context int) (string, error) {
	if context < 0 {
		context = DefaultContext
	}

	a, err := render(oldItems)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", fromName, err)
	}

	b, err := render(newItems)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", toName, err)
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  context,
	}

	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("generating patch: %w", err)
	}

	return out, nil
}

func render(items []models.SnapshotItem) (string, error) {
	sorted := make(map[string]models.SnapshotItem, len(items))
	for _, it := range items {
		sorted[it.Key] = it
	}

	keys := make([]string, 0, len(sorted))
	for k := range sorted {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		it := sorted[k]

		sb.WriteString("# ")
		sb.WriteString(k)
		if it.Label != nil && *it.Label != "" && *it.Label != k {
			sb.WriteString(" (")
			sb.WriteString(*it.Label)
			sb.WriteString(")")
		}
		sb.WriteByte('\n')

		if len(bytes.TrimSpace(it.Value)) == 0 {
			sb.WriteString("  null\n")
			continue
		}

		var buf bytes.Buffer
		if err := json.Indent(&buf, it.Value, "  ", "  "); err != nil {
			return "", fmt.Errorf("item %q: %w", k, err)
		}
		sb.WriteString("  ")
		sb.Write(buf.Bytes())
		sb.WriteByte('\n')
	}

	return sb.String(), nil
}
