package match

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed variations.yaml
var embeddedVariations []byte

// Variations is the first-name equivalence table. Names sharing a group are
// pairwise interchangeable for PARTIAL matching; a name may belong to
// several groups (e.g. "rick" under both richard and eric).
type Variations struct {
	groups map[string][]int
}

// LoadVariations reads an equivalence table from a YAML file.
func LoadVariations(path string) (*Variations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "match: read variations %s", path)
	}
	v, err := parseVariations(data)
	if err != nil {
		return nil, eris.Wrapf(err, "match: parse variations %s", path)
	}
	return v, nil
}

// DefaultVariations returns the built-in table.
func DefaultVariations() *Variations {
	v, err := parseVariations(embeddedVariations)
	if err != nil {
		panic(err)
	}
	return v
}

func parseVariations(data []byte) (*Variations, error) {
	var wrapper struct {
		Variations map[string][]string `yaml:"variations"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "match: unmarshal variations")
	}

	v := &Variations{groups: make(map[string][]int)}
	id := 0
	for canonical, aliases := range wrapper.Variations {
		group := append([]string{canonical}, aliases...)
		for _, name := range group {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			v.groups[name] = append(v.groups[name], id)
		}
		id++
	}
	return v, nil
}

// Equivalent reports whether a and b are the same name or share a group.
// Both arguments are expected in normalized form.
func (v *Variations) Equivalent(a, b string) bool {
	if a == b {
		return a != ""
	}
	for _, ga := range v.groups[a] {
		for _, gb := range v.groups[b] {
			if ga == gb {
				return true
			}
		}
	}
	return false
}

// Size returns the number of distinct names known to the table.
func (v *Variations) Size() int { return len(v.groups) }
