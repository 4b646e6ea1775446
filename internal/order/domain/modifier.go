package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ModifierKind is the closed set of modifier groups an item can carry.
type ModifierKind string

const (
	ModSize     ModifierKind = "size"
	ModDoneness ModifierKind = "doneness"
	ModExtra    ModifierKind = "extra"
	ModSide     ModifierKind = "side"
	ModBread    ModifierKind = "bread"
	ModDrink    ModifierKind = "drink"
	ModStyle    ModifierKind = "style"
)

var modifierOptions = map[ModifierKind][]string{
	ModSize:     {"small", "medium", "large"},
	ModDoneness: {"rare", "medium", "well_done"},
	ModExtra:    {"extra_cheese", "bacon", "egg", "avocado", "mushrooms"},
	ModSide:     {"fries", "salad", "rice", "vegetables"},
	ModBread:    {"white", "wholegrain", "gluten_free"},
	ModDrink:    {"water", "soda", "beer", "wine"},
	ModStyle:    {"classic", "spicy", "vegetarian"},
}

// Options returns the values allowed for kind, nil for an unknown kind.
func (k ModifierKind) Options() []string {
	return slices.Clone(modifierOptions[k])
}

// Modifier is one choice applied to an order item. Only kind/value pairs
// from the closed tables above decode successfully.
type Modifier struct {
	Kind  ModifierKind `json:"type"`
	Value string       `json:"value"`
}

func NewModifier(kind ModifierKind, value string) (Modifier, error) {
	m := Modifier{Kind: kind, Value: value}
	return m, m.Validate()
}

func (m Modifier) Validate() error {
	opts, ok := modifierOptions[m.Kind]
	if !ok {
		return fmt.Errorf("unknown modifier type %q", m.Kind)
	}
	if !slices.Contains(opts, m.Value) {
		return fmt.Errorf("invalid %s modifier %q", m.Kind, m.Value)
	}
	return nil
}

func (m *Modifier) UnmarshalJSON(b []byte) error {
	type raw Modifier
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if err := Modifier(r).Validate(); err != nil {
		return err
	}
	*m = Modifier(r)
	return nil
}

// Label is the human form used on tickets, e.g. "size: large".
func (m Modifier) Label() string {
	return fmt.Sprintf("%s: %s", m.Kind, m.Value)
}
