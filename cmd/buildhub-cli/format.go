package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nivostack/buildhub/client"
)

// maxCellWidth truncates long values in table cells.
const maxCellWidth = 48

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatQuiet(id string) {
	fmt.Println(id)
}

func output(v any, quietVal string) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quietVal)
	default:
		// Table rendering is done by callers that know the shape.
		formatJSON(v)
	}
}

func formatBuilds(builds []client.Build) {
	headers := []string{"ID", "VERSION", "NAME", "FEATURES", "MODES", "CREATED_AT"}
	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		features := make([]string, 0, len(b.Features))
		for _, f := range b.Features {
			features = append(features, fmt.Sprintf("%s(%d)", f.FeatureType, f.ItemCount))
		}
		modes := make([]string, 0, len(b.Modes))
		for _, m := range b.Modes {
			modes = append(modes, m.Mode+":"+m.FeatureType)
		}
		rows = append(rows, []string{
			b.ID,
			"v" + strconv.Itoa(b.Version),
			truncate(deref(b.Name)),
			strings.Join(features, ","),
			strings.Join(modes, ","),
			b.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	formatTable(headers, rows)
}

func formatDiff(d client.BuildDiff) {
	headers := []string{"FEATURE", "CHANGE", "KEY", "OLD", "NEW"}
	var rows [][]string
	for _, ft := range sortedFeatures(d) {
		for _, c := range d[ft] {
			rows = append(rows, []string{ft, c.ChangeType, c.ItemKey, truncate(string(c.OldValue)), truncate(string(c.NewValue))})
		}
	}
	formatTable(headers, rows)
}

func formatActive(p *client.ActivePayload) {
	features := make([]string, 0, len(p.Features))
	for ft := range p.Features {
		features = append(features, ft)
	}
	sort.Strings(features)

	headers := []string{"FEATURE", "BUILD_ID", "VERSION", "ITEMS"}
	rows := make([][]string, 0, len(features))
	for _, ft := range features {
		info := p.Features[ft]
		rows = append(rows, []string{ft, info.BuildID, "v" + strconv.Itoa(info.Version), strconv.Itoa(len(info.Items))})
	}
	formatTable(headers, rows)
}

func truncate(s string) string {
	if len(s) <= maxCellWidth {
		return s
	}
	return s[:maxCellWidth-3] + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
