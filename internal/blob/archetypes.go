package blob

import (
	"fmt"
	"sort"
)

// Archetypes are the stock blob presets. "base" reproduces the classic
// half-and-half blob; "sturdy" trades nothing for a better survival roll;
// "perfect" survives and reproduces unconditionally and exists mostly for
// calibration runs; "mutated_base" is the variant lineage the base
// archetype mutates into.
var archetypes = map[string]Blob{
	"base": {
		Type:             "base",
		SurvivalProb:     0.5,
		ReproductionProb: 0.5,
		Offspring:        Fixed{Count: 1},
	},
	"mutated_base": {
		Type:             "mutated_base",
		SurvivalProb:     0.5,
		ReproductionProb: 0.5,
		Offspring:        Fixed{Count: 1},
	},
	"sturdy": {
		Type:             "sturdy",
		SurvivalProb:     0.8,
		ReproductionProb: 0.5,
		Offspring:        Fixed{Count: 1},
	},
	"perfect": {
		Type:             "perfect",
		SurvivalProb:     1.0,
		ReproductionProb: 1.0,
		Offspring:        Fixed{Count: 1},
	},
}

// Archetype returns a stock blob preset by name.
func Archetype(name string) (Blob, error) {
	b, ok := archetypes[name]
	if !ok {
		return Blob{}, fmt.Errorf("unknown blob archetype: %s", name)
	}
	return b, nil
}

// ArchetypeNames lists the available presets in stable order.
func ArchetypeNames() []string {
	names := make([]string, 0, len(archetypes))
	for name := range archetypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
