package model

// Choice is a (value, label) pair rendered as a two-element JSON array,
// the shape the frontend expects for dropdown options.
type Choice [2]string

// Value returns the posted-back value of the choice.
func (c Choice) Value() string { return c[0] }

// Label returns the display label of the choice.
func (c Choice) Label() string { return c[1] }

// Choicify wraps a list of names into choices where each name is both the
// value and the label.
func Choicify(values []string) []Choice {
	choices := make([]Choice, len(values))
	for i, v := range values {
		choices[i] = Choice{v, v}
	}
	return choices
}
