package scene

import (
	"maps"
	"slices"
)

func sortedIDs(entities map[EntityID]*Entity) []EntityID {
	return slices.Sorted(maps.Keys(entities))
}
