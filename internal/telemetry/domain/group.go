package telemetry

import (
	"errors"
	"sort"
)

// ErrShortWindow is returned when a group has fewer rows than a window needs.
var ErrShortWindow = errors.New("telemetry: not enough rows for window")

// GroupKey identifies a group by entity and grouping tag.
type GroupKey struct {
	Entity string
	Tag    string
}

func (k GroupKey) String() string {
	return k.Entity + "/" + k.Tag
}

// Group is the set of rows sharing one GroupKey, ordered by time ascending.
type Group struct {
	Key  GroupKey
	Rows []Row
}

// GroupBy partitions rows by (entityLabel, tagLabel). Rows missing either
// label are ignored. Groups come back sorted by key.
func GroupBy(rows []Row, entityLabel, tagLabel string) []Group {
	index := make(map[GroupKey]int)
	var groups []Group
	for _, row := range rows {
		entity, ok := row.Label(entityLabel)
		if !ok {
			continue
		}
		tag, ok := row.Label(tagLabel)
		if !ok {
			continue
		}
		key := GroupKey{Entity: entity, Tag: tag}
		pos, seen := index[key]
		if !seen {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, Group{Key: key})
		}
		groups[pos].Rows = append(groups[pos].Rows, row)
	}
	for i := range groups {
		sort.SliceStable(groups[i].Rows, func(a, b int) bool {
			return groups[i].Rows[a].Time.Before(groups[i].Rows[b].Time)
		})
	}
	sort.Slice(groups, func(a, b int) bool {
		if groups[a].Key.Entity != groups[b].Key.Entity {
			return groups[a].Key.Entity < groups[b].Key.Entity
		}
		return groups[a].Key.Tag < groups[b].Key.Tag
	})
	return groups
}

// Window returns the last n rows of the group. n <= 0 returns every row.
func (g Group) Window(n int) ([]Row, error) {
	if n <= 0 {
		return g.Rows, nil
	}
	if len(g.Rows) < n {
		return nil, ErrShortWindow
	}
	return g.Rows[len(g.Rows)-n:], nil
}

// Series extracts the named values from rows, one vector per row.
func Series(rows []Row, fields []string) [][]float64 {
	out := make([][]float64, 0, len(rows))
	for _, row := range rows {
		vec := make([]float64, len(fields))
		for i, field := range fields {
			vec[i] = row.Values[field]
		}
		out = append(out, vec)
	}
	return out
}
