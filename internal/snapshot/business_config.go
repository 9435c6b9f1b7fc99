package snapshot

import (
	"context"
	"fmt"

	"github.com/nivostack/buildhub/internal/models"
)

const businessConfigQuery = `
	SELECT key, label, value_type,
		string_value, integer_value, boolean_value, decimal_value::text, json_value, image_url
	FROM business_configs
	WHERE project_id = $1 AND is_enabled
	ORDER BY key`

// readBusinessConfig emits one item per enabled config entry, with the value
// taken from the storage column selected by the entry's value type.
func readBusinessConfig(ctx context.Context, q Querier, projectID string) ([]models.SnapshotItem, error) {
	rows, err := q.Query(ctx, businessConfigQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying business configs: %w", err)
	}
	defer rows.Close()

	items := make([]models.SnapshotItem, 0, 32)

	for rows.Next() {
		var (
			key       string
			label     *string
			valueType string
			cols      models.ConfigColumns
		)

		if err := rows.Scan(
			&key, &label, &valueType,
			&cols.String, &cols.Integer, &cols.Boolean, &cols.Decimal, &cols.JSON, &cols.Image,
		); err != nil {
			return nil, fmt.Errorf("scanning business config: %w", err)
		}

		value, err := configValueJSON(models.ValueType(valueType), cols)
		if err != nil {
			return nil, fmt.Errorf("config %q: %w", key, err)
		}

		items = append(items, models.SnapshotItem{Key: key, Label: label, Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating business configs: %w", err)
	}

	return items, nil
}

func configValueJSON(vt models.ValueType, cols models.ConfigColumns) ([]byte, error) {
	v, err := models.DecodeConfigValue(vt, cols)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return []byte("null"), nil
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}

	if vt == models.ValueJSON {
		return canonicalJSON(raw)
	}

	return raw, nil
}
