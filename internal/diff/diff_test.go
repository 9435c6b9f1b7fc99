package diff_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/nivostack/buildhub/internal/diff"
	"github.com/nivostack/buildhub/internal/models"
)

func item(key, value string) models.SnapshotItem {
	return models.SnapshotItem{Key: key, Value: json.RawMessage(value)}
}

func feature(ft models.FeatureType, items ...models.SnapshotItem) models.BuildFeature {
	return models.BuildFeature{FeatureType: ft, ItemCount: len(items), Items: items}
}

func TestCompute_BusinessConfigExample(t *testing.T) {
	v1 := []models.BuildFeature{feature(models.FeatureBusinessConfig,
		item("a", `1`), item("b", `"x"`))}
	v2 := []models.BuildFeature{feature(models.FeatureBusinessConfig,
		item("a", `2`), item("b", `"x"`), item("c", `true`))}

	forward := diff.Compute(v1, v2)[models.FeatureBusinessConfig]
	if len(forward) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(forward), forward)
	}

	if forward[0].ItemKey != "a" || forward[0].ChangeType != models.ChangeChanged ||
		string(forward[0].OldValue) != "1" || string(forward[0].NewValue) != "2" {
		t.Errorf("unexpected first change: %+v", forward[0])
	}

	if forward[1].ItemKey != "c" || forward[1].ChangeType != models.ChangeAdded ||
		string(forward[1].NewValue) != "true" || forward[1].OldValue != nil {
		t.Errorf("unexpected second change: %+v", forward[1])
	}

	backward := diff.Compute(v2, v1)[models.FeatureBusinessConfig]
	if len(backward) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(backward))
	}

	if backward[0].ChangeType != models.ChangeChanged ||
		string(backward[0].OldValue) != "2" || string(backward[0].NewValue) != "1" {
		t.Errorf("unexpected reverse change: %+v", backward[0])
	}

	if backward[1].ItemKey != "c" || backward[1].ChangeType != models.ChangeDeleted ||
		string(backward[1].OldValue) != "true" || backward[1].NewValue != nil {
		t.Errorf("unexpected reverse deletion: %+v", backward[1])
	}
}

func TestCompute_Mirror(t *testing.T) {
	label := "Greeting"
	a := []models.BuildFeature{
		feature(models.FeatureLocalization,
			models.SnapshotItem{Key: "greet", Label: &label, Value: json.RawMessage(`{"en":"hi","fr":"salut"}`)},
			item("bye", `{"en":"bye"}`),
			item("same", `{"en":"same"}`)),
	}
	b := []models.BuildFeature{
		feature(models.FeatureLocalization,
			item("greet", `{"en":"hello","fr":"salut"}`),
			item("same", `{ "en" : "same" }`),
			item("new", `{"de":"neu"}`)),
		feature(models.FeatureAPIMocks, item("dev:GET /x", `{"status":200}`)),
	}

	ab := diff.Compute(a, b)
	ba := diff.Compute(b, a)

	if len(ab) != len(ba) {
		t.Fatalf("feature sets differ: %d vs %d", len(ab), len(ba))
	}

	swap := map[models.ChangeType]models.ChangeType{
		models.ChangeAdded:   models.ChangeDeleted,
		models.ChangeDeleted: models.ChangeAdded,
		models.ChangeChanged: models.ChangeChanged,
	}

	for ft, forward := range ab {
		backward, ok := ba[ft]
		if !ok {
			t.Fatalf("feature %s missing from reverse diff", ft)
		}
		if len(forward) != len(backward) {
			t.Fatalf("feature %s: %d vs %d records", ft, len(forward), len(backward))
		}

		for i := range forward {
			f, r := forward[i], backward[i]
			if f.ItemKey != r.ItemKey {
				t.Errorf("%s[%d]: key %q vs %q", ft, i, f.ItemKey, r.ItemKey)
			}
			if swap[f.ChangeType] != r.ChangeType {
				t.Errorf("%s[%d]: type %s vs %s", ft, i, f.ChangeType, r.ChangeType)
			}
			if string(f.OldValue) != string(r.NewValue) || string(f.NewValue) != string(r.OldValue) {
				t.Errorf("%s[%d]: values not swapped", ft, i)
			}
		}
	}

	if got := ab[models.FeatureAPIMocks]; len(got) != 1 || got[0].ChangeType != models.ChangeAdded {
		t.Errorf("api_mocks present only in new build should be all added, got %+v", got)
	}
}

func TestCompute_SelfIsEmpty(t *testing.T) {
	build := []models.BuildFeature{
		feature(models.FeatureBusinessConfig, item("a", `1`), item("b", `{"x":[1,2,{"y":null}]}`)),
		feature(models.FeatureLocalization),
	}

	d := diff.Compute(build, build)

	if len(d) != 2 {
		t.Fatalf("expected an entry per feature type, got %d", len(d))
	}

	for ft, changes := range d {
		if changes == nil {
			t.Errorf("%s: expected empty slice, got nil", ft)
		}
		if len(changes) != 0 {
			t.Errorf("%s: expected no changes, got %+v", ft, changes)
		}
	}
}

func TestCompute_OrderedByKey(t *testing.T) {
	old := []models.BuildFeature{feature(models.FeatureBusinessConfig, item("m", `1`), item("z", `1`))}
	next := []models.BuildFeature{feature(models.FeatureBusinessConfig, item("a", `1`), item("m", `2`))}

	changes := diff.Compute(old, next)[models.FeatureBusinessConfig]

	var keys []string
	for _, c := range changes {
		keys = append(keys, c.ItemKey)
	}

	if got := strings.Join(keys, ","); got != "a,m,z" {
		t.Errorf("keys = %s, want a,m,z", got)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"same scalar", `1`, `1`, true},
		{"number forms", `1`, `1.0`, true},
		{"exponent", `100`, `1e2`, true},
		{"decimal precision", `0.1`, `0.10000000000000001`, false},
		{"key order", `{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{"array order matters", `[1,2]`, `[2,1]`, false},
		{"string vs number", `"1"`, `1`, false},
		{"null vs missing", `{"a":null}`, `{}`, false},
		{"nested", `{"a":[{"b":true}]}`, `{"a":[{"b":true}]}`, true},
		{"empty vs null", ``, `null`, true},
		{"invalid falls back to bytes", `{bad`, `{bad`, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := diff.Equal(json.RawMessage(tc.a), json.RawMessage(tc.b)); got != tc.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestPatch(t *testing.T) {
	old := []models.SnapshotItem{item("a", `1`), item("b", `"x"`)}
	next := []models.SnapshotItem{item("a", `2`), item("b", `"x"`), item("c", `true`)}

	out, err := diff.Patch("v1", "v2", old, next, 0)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	for _, want := range []string{"--- v1", "+++ v2", "-  1", "+  2", "+# c", "+  true"} {
		if !strings.Contains(out, want) {
			t.Errorf("patch missing %q:\n%s", want, out)
		}
	}

	same, err := diff.Patch("v1", "v1", old, old, 0)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if same != "" {
		t.Errorf("expected empty patch, got:\n%s", same)
	}
}

func TestPatch_ContextLines(t *testing.T) {
	var old, next []models.SnapshotItem
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%02d", i)
		old = append(old, item(key, `1`))
		if i == 5 {
			next = append(next, item(key, `2`))
			continue
		}
		next = append(next, item(key, `1`))
	}

	contextLines := func(patch string) int {
		n := 0
		for _, line := range strings.Split(patch, "\n") {
			if strings.HasPrefix(line, " ") {
				n++
			}
		}
		return n
	}

	tests := []struct {
		name    string
		context int
		want    int
	}{
		{name: "zero", context: 0, want: 0},
		{name: "one", context: 1, want: 2},
		{name: "negative uses default", context: -1, want: 2 * diff.DefaultContext},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := diff.Patch("v1", "v2", old, next, tc.context)
			if err != nil {
				t.Fatalf("Patch: %v", err)
			}
			if !strings.Contains(out, "-  1\n+  2") {
				t.Errorf("patch missing change:\n%s", out)
			}
			if got := contextLines(out); got != tc.want {
				t.Errorf("context lines = %d, want %d:\n%s", got, tc.want, out)
			}
		})
	}
}
