package snapshot

import (
	"context"
	"fmt"

	"github.com/nivostack/buildhub/internal/models"
)

const localizationQuery = `
	SELECT tk.key, tk.description, l.code, t.value
	FROM translation_keys tk
	LEFT JOIN translations t ON t.translation_key_id = tk.id
	LEFT JOIN languages l ON l.id = t.language_id
	WHERE tk.project_id = $1
	ORDER BY tk.key, l.code`

// readLocalization emits one item per translation key. The value maps each
// language code to its text; languages without a translation are left out.
func readLocalization(ctx context.Context, q Querier, projectID string) ([]models.SnapshotItem, error) {
	rows, err := q.Query(ctx, localizationQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying translations: %w", err)
	}
	defer rows.Close()

	type entry struct {
		description *string
		texts       map[string]string
	}

	order := make([]string, 0, 64)
	byKey := make(map[string]*entry, 64)

	for rows.Next() {
		var (
			key         string
			description *string
			langCode    *string
			text        *string
		)

		if err := rows.Scan(&key, &description, &langCode, &text); err != nil {
			return nil, fmt.Errorf("scanning translation: %w", err)
		}

		e, ok := byKey[key]
		if !ok {
			e = &entry{description: description, texts: make(map[string]string)}
			byKey[key] = e
			order = append(order, key)
		}

		if langCode != nil && text != nil {
			e.texts[*langCode] = *text
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating translations: %w", err)
	}

	items := make([]models.SnapshotItem, 0, len(order))

	for _, key := range order {
		e := byKey[key]

		value, err := encode(e.texts)
		if err != nil {
			return nil, fmt.Errorf("translation key %q: %w", key, err)
		}

		items = append(items, models.SnapshotItem{Key: key, Label: e.description, Value: value})
	}

	return items, nil
}
