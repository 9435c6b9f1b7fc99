// Package diff compares build snapshots item by item.
package diff

import (
	"sort"

	"github.com/nivostack/buildhub/internal/models"
)

// Compute returns the change set between two builds' feature snapshots.
// Every feature type carried by either side gets an entry; a side without
// that feature is treated as an empty snapshot. Records are ordered by key.
func Compute(oldFeatures, newFeatures []models.BuildFeature) models.BuildDiff {
	oldByType := indexFeatures(oldFeatures)
	newByType := indexFeatures(newFeatures)

	result := make(models.BuildDiff)

	for _, ft := range models.FeatureTypes {
		oldItems, inOld := oldByType[ft]
		newItems, inNew := newByType[ft]

		if !inOld && !inNew {
			continue
		}

		result[ft] = Items(oldItems, newItems)
	}

	return result
}

// Items compares two snapshot item lists by key. The result is never nil.
func Items(oldItems, newItems []models.SnapshotItem) []models.ChangeRecord {
	oldMap := indexItems(oldItems)
	newMap := indexItems(newItems)

	keys := make([]string, 0, len(oldMap)+len(newMap))
	for k := range oldMap {
		keys = append(keys, k)
	}
	for k := range newMap {
		if _, ok := oldMap[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	changes := make([]models.ChangeRecord, 0)

	for _, k := range keys {
		o, inOld := oldMap[k]
		n, inNew := newMap[k]

		switch {
		case inNew && !inOld:
			changes = append(changes, models.ChangeRecord{
				ItemKey:    k,
				ItemLabel:  n.Label,
				ChangeType: models.ChangeAdded,
				NewValue:   n.Value,
			})
		case inOld && !inNew:
			changes = append(changes, models.ChangeRecord{
				ItemKey:    k,
				ItemLabel:  o.Label,
				ChangeType: models.ChangeDeleted,
				OldValue:   o.Value,
			})
		case !Equal(o.Value, n.Value):
			changes = append(changes, models.ChangeRecord{
				ItemKey:    k,
				ItemLabel:  pickLabel(o.Label, n.Label),
				ChangeType: models.ChangeChanged,
				OldValue:   o.Value,
				NewValue:   n.Value,
			})
		}
	}

	return changes
}

// pickLabel returns the non-nil label, or the lexically smaller of two,
// so the result does not depend on argument order.
func pickLabel(a, b *string) *string {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a <= *b:
		return a
	default:
		return b
	}
}

func indexFeatures(features []models.BuildFeature) map[models.FeatureType][]models.SnapshotItem {
	m := make(map[models.FeatureType][]models.SnapshotItem, len(features))
	for _, f := range features {
		m[f.FeatureType] = f.Items
	}

	return m
}

// indexItems keys items by Key. A repeated key keeps its last occurrence.
func indexItems(items []models.SnapshotItem) map[string]models.SnapshotItem {
	m := make(map[string]models.SnapshotItem, len(items))
	for _, it := range items {
		m[it.Key] = it
	}

	return m
}
