package normalize

// Position -> column tables for the variable-length sub-lists.
// Positions past the end of a table are ignored; positions past the end of the
// upstream list produce "" (types, abilities) or nil (stats).
var (
	TypeColumns    = [2]string{"type_1", "type_2"}
	AbilityColumns = [3]string{"ability_1", "ability_2", "ability_3"}

	// StatColumns follows the API's fixed stat order:
	// hp, attack, defense, special-attack, special-defense, speed.
	// The stat's own name field is never consulted.
	StatColumns = [6]string{"HP", "ATK", "DEF", "SP_ATK", "SP_DEF", "Speed"}
)

// Columns is the flat schema in output order
var Columns = []string{
	"id", "name", "height", "weight",
	TypeColumns[0], TypeColumns[1],
	AbilityColumns[0], AbilityColumns[1], AbilityColumns[2],
	StatColumns[0], StatColumns[1], StatColumns[2], StatColumns[3], StatColumns[4], StatColumns[5],
}

// Record is one pokemon flattened into the fixed schema
type Record struct {
	ID     int
	Name   string
	Height int
	Weight int

	Types     [len(TypeColumns)]string
	Abilities [len(AbilityColumns)]string
	Stats     [len(StatColumns)]*int
}

// Stat returns the stat stored under a StatColumns name
func (r Record) Stat(column string) (*int, bool) {
	for i, name := range StatColumns {
		if name == column {
			return r.Stats[i], true
		}
	}
	return nil, false
}

// Equal reports whether two records hold the same values (stat pointers compared by value)
func (r Record) Equal(o Record) bool {
	if r.ID != o.ID || r.Name != o.Name || r.Height != o.Height || r.Weight != o.Weight {
		return false
	}
	if r.Types != o.Types || r.Abilities != o.Abilities {
		return false
	}
	for i := range r.Stats {
		a, b := r.Stats[i], o.Stats[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// IntPtr is a small helper for building records with stats
func IntPtr(v int) *int {
	return &v
}
