package snapshot_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/models"
	"github.com/nivostack/buildhub/internal/snapshot"
)

const (
	ownerID   = "5f0c6f43-8d4e-4f59-9a55-3b8b6f2b1f10"
	projectID = "0b6e3c5a-2f7e-4b7e-8f43-6a2d7b0c9e21"
)

// fakeQuerier serves canned rows keyed by a substring of the SQL text.
type fakeQuerier struct {
	owned bool
	rows  map[string][][]any
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	for frag, data := range f.rows {
		if strings.Contains(sql, frag) {
			return &fakeRows{data: data, idx: -1}, nil
		}
	}

	return &fakeRows{idx: -1}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{val: f.owned}
}

type fakeRow struct{ val any }

func (r fakeRow) Scan(dest ...any) error { return assign(dest[0], r.val) }

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(row) != len(dest) {
		return fmt.Errorf("row has %d columns, scan wants %d", len(row), len(dest))
	}

	for i := range dest {
		if err := assign(dest[i], row[i]); err != nil {
			return err
		}
	}

	return nil
}

// assign stores val into the pointer dest, allocating for pointer targets.
func assign(dest, val any) error {
	dv := reflect.ValueOf(dest).Elem()

	if val == nil {
		dv.Set(reflect.Zero(dv.Type()))
		return nil
	}

	vv := reflect.ValueOf(val)

	if dv.Kind() == reflect.Pointer && vv.Type() != dv.Type() {
		p := reflect.New(dv.Type().Elem())
		p.Elem().Set(vv.Convert(dv.Type().Elem()))
		dv.Set(p)

		return nil
	}

	if !vv.Type().ConvertibleTo(dv.Type()) {
		return fmt.Errorf("cannot assign %T to %s", val, dv.Type())
	}

	dv.Set(vv.Convert(dv.Type()))

	return nil
}

func newSerializer() *snapshot.Serializer {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return snapshot.New(log)
}

func str(s string) *string { return &s }

func itemsJSON(items []models.SnapshotItem) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(it.Key)
		sb.WriteString("=")
		sb.Write(it.Value)
		sb.WriteString(";")
	}

	return sb.String()
}

func TestSnapshot_BusinessConfig(t *testing.T) {
	q := &fakeQuerier{owned: true, rows: map[string][][]any{
		"FROM business_configs": {
			// key, label, type, string, integer, boolean, decimal, json, image
			{"theme", "Theme", "json", nil, nil, nil, nil, []byte(`{"z":1, "a":{"y":2,"b":1}}`), nil},
			{"a_name", nil, "string", "Acme", nil, nil, nil, nil, nil},
			{"max_items", "Max", "integer", nil, int64(25), nil, nil, nil, nil},
			{"enabled", nil, "boolean", nil, nil, false, nil, nil, nil},
			{"price", nil, "decimal", nil, nil, nil, "19.990", nil, nil},
			{"logo", nil, "image", nil, nil, nil, nil, nil, "https://cdn.example/logo.png"},
			{"unset", nil, "string", nil, nil, nil, nil, nil, nil},
		},
	}}

	items, err := newSerializer().Snapshot(context.Background(), q, ownerID, projectID, models.FeatureBusinessConfig)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	want := `a_name="Acme";enabled=false;logo="https://cdn.example/logo.png";max_items=25;` +
		`price=19.990;theme={"a":{"b":1,"y":2},"z":1};unset=null;`
	if got := itemsJSON(items); got != want {
		t.Errorf("items =\n%s\nwant\n%s", got, want)
	}

	if items[3].Label == nil || *items[3].Label != "Max" {
		t.Errorf("label not carried: %+v", items[3])
	}
}

func TestSnapshot_BusinessConfigUnknownType(t *testing.T) {
	q := &fakeQuerier{owned: true, rows: map[string][][]any{
		"FROM business_configs": {{"k", nil, "color", nil, nil, nil, nil, nil, nil}},
	}}

	_, err := newSerializer().Snapshot(context.Background(), q, ownerID, projectID, models.FeatureBusinessConfig)
	if err == nil || !strings.Contains(err.Error(), "unknown config value type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestSnapshot_Localization(t *testing.T) {
	q := &fakeQuerier{owned: true, rows: map[string][][]any{
		"FROM translation_keys": {
			{"home.title", "Home title", "en", "Home"},
			{"home.title", "Home title", "fr", "Accueil"},
			{"empty.key", nil, nil, nil},
			{"bye", "Farewell", "en", "Bye"},
		},
	}}

	items, err := newSerializer().Snapshot(context.Background(), q, ownerID, projectID, models.FeatureLocalization)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	want := `bye={"en":"Bye"};empty.key={};home.title={"en":"Home","fr":"Accueil"};`
	if got := itemsJSON(items); got != want {
		t.Errorf("items = %s, want %s", got, want)
	}

	if items[2].Label == nil || *items[2].Label != "Home title" {
		t.Errorf("expected description as label, got %+v", items[2].Label)
	}
}

func TestSnapshot_APIMocks(t *testing.T) {
	q := &fakeQuerier{owned: true, rows: map[string][][]any{
		"FROM mock_environments": {
			{"dev", str("https://dev.api"), true, "ep-1", "get", "/users", nil,
				"ok", 200, []byte(`{"users":[]}`), []byte(`{"X-B":"2","X-A":"1"}`), 0, true},
			{"dev", str("https://dev.api"), true, "ep-1", "get", "/users", nil,
				"fail", 500, nil, nil, 150, false},
			{"dev", str("https://dev.api"), true, "ep-2", "POST", "/login", "sign in",
				nil, nil, nil, nil, nil, nil},
		},
	}}

	items, err := newSerializer().Snapshot(context.Background(), q, ownerID, projectID, models.FeatureAPIMocks)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if items[0].Key != "dev:GET /users" || items[1].Key != "dev:POST /login" {
		t.Errorf("unexpected keys: %q, %q", items[0].Key, items[1].Key)
	}

	if *items[0].Label != "dev - GET /users" {
		t.Errorf("label = %q", *items[0].Label)
	}

	v := string(items[0].Value)
	for _, want := range []string{`"method":"GET"`, `"headers":{"X-A":"1","X-B":"2"}`, `"statusCode":500`, `"delayMs":150`, `"body":null`} {
		if !strings.Contains(v, want) {
			t.Errorf("value missing %s: %s", want, v)
		}
	}

	if !strings.Contains(string(items[1].Value), `"responses":[]`) {
		t.Errorf("endpoint without responses should carry an empty list: %s", items[1].Value)
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	q := &fakeQuerier{owned: true, rows: map[string][][]any{
		"FROM business_configs": {
			{"b", nil, "json", nil, nil, nil, nil, []byte(`{"k":[1,2],"a":null}`), nil},
			{"a", nil, "integer", nil, int64(1), nil, nil, nil, nil},
		},
	}}

	s := newSerializer()

	first, err := s.Snapshot(context.Background(), q, ownerID, projectID, models.FeatureBusinessConfig)
	if err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}

	second, err := s.Snapshot(context.Background(), q, ownerID, projectID, models.FeatureBusinessConfig)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}

	if itemsJSON(first) != itemsJSON(second) {
		t.Errorf("snapshots differ:\n%s\n%s", itemsJSON(first), itemsJSON(second))
	}
}

func TestSnapshot_EmptyFeature(t *testing.T) {
	q := &fakeQuerier{owned: true}

	for _, ft := range models.FeatureTypes {
		items, err := newSerializer().Snapshot(context.Background(), q, ownerID, projectID, ft)
		if err != nil {
			t.Fatalf("%s: %v", ft, err)
		}
		if items == nil || len(items) != 0 {
			t.Errorf("%s: expected empty non-nil list, got %v", ft, items)
		}
	}
}

func TestSnapshot_ProjectNotFound(t *testing.T) {
	tests := []struct {
		name      string
		owned     bool
		projectID string
	}{
		{"not owned", false, projectID},
		{"malformed id", true, "not-a-uuid"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQuerier{owned: tc.owned}

			_, err := newSerializer().Snapshot(context.Background(), q, ownerID, tc.projectID, models.FeatureLocalization)
			if !errors.Is(err, models.ErrProjectNotFound) {
				t.Errorf("expected ErrProjectNotFound, got %v", err)
			}
		})
	}
}

func TestSnapshot_InvalidFeature(t *testing.T) {
	_, err := newSerializer().Snapshot(context.Background(), &fakeQuerier{owned: true}, ownerID, projectID, "flags")
	if !errors.Is(err, models.ErrInvalidFeatureType) {
		t.Errorf("expected ErrInvalidFeatureType, got %v", err)
	}
}
