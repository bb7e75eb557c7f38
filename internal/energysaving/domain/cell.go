package energysaving

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var cellIDPattern = regexp.MustCompile(`S(\d+)[-/][BN](\d+)[-/]C(\d+)`)

// CellID is a parsed site/band/cell identifier such as "S1/B13/C1".
type CellID struct {
	Raw  string
	Site int
	Band int
	Cell int
}

// ParseCellID extracts the site, band and cell numbers from raw.
func ParseCellID(raw string) (CellID, error) {
	m := cellIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return CellID{}, fmt.Errorf("energysaving: unparsable cell id %q", raw)
	}
	id := CellID{Raw: raw}
	id.Site, _ = strconv.Atoi(m[1])
	id.Band, _ = strconv.Atoi(m[2])
	id.Cell, _ = strconv.Atoi(m[3])
	return id, nil
}

// Less orders cells by band, then site, then cell.
func (c CellID) Less(o CellID) bool {
	if c.Band != o.Band {
		return c.Band < o.Band
	}
	if c.Site != o.Site {
		return c.Site < o.Site
	}
	return c.Cell < o.Cell
}

// Number assigns each distinct (band, site, cell) a 1-based index in Less
// order.
func Number(ids []CellID) map[CellID]int {
	type triple struct{ b, s, c int }
	seen := make(map[triple]CellID)
	for _, id := range ids {
		key := triple{id.Band, id.Site, id.Cell}
		if _, ok := seen[key]; !ok {
			seen[key] = id
		}
	}
	unique := make([]CellID, 0, len(seen))
	for _, id := range seen {
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Less(unique[j]) })

	index := make(map[triple]int, len(unique))
	for i, id := range unique {
		index[triple{id.Band, id.Site, id.Cell}] = i + 1
	}
	numbers := make(map[CellID]int, len(ids))
	for _, id := range ids {
		numbers[id] = index[triple{id.Band, id.Site, id.Cell}]
	}
	return numbers
}

// ManagedElement returns the ManagedElement name embedded in a measurement
// such as "ManagedElement=me-1,GNBDUFunction=1". A measurement without both
// '=' and ',' is returned unchanged.
func ManagedElement(measurement string) string {
	if !strings.Contains(measurement, "=") || !strings.Contains(measurement, ",") {
		return measurement
	}
	for _, part := range strings.Split(measurement, ",") {
		if value, ok := strings.CutPrefix(part, "ManagedElement="); ok {
			return value
		}
	}
	return measurement
}

// EntityKey identifies a cell on a managed element in the state cache.
func EntityKey(cellID, measurement string) string {
	return cellID + "_" + ManagedElement(measurement)
}
