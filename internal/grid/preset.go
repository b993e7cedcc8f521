package grid

// Preset is a named grid shape offered to users.
type Preset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// Presets lists the built-in shapes in display order.
var Presets = []Preset{
	{ID: "cross4", Name: "Cross", Cols: 2, Rows: 2},
	{ID: "vertical2", Name: "Vertical 2", Cols: 2, Rows: 1},
	{ID: "vertical3", Name: "Vertical 3", Cols: 3, Rows: 1},
	{ID: "vertical4", Name: "Vertical 4", Cols: 4, Rows: 1},
	{ID: "horizontal2", Name: "Horizontal 2", Cols: 1, Rows: 2},
	{ID: "horizontal3", Name: "Horizontal 3", Cols: 1, Rows: 3},
	{ID: "horizontal4", Name: "Horizontal 4", Cols: 1, Rows: 4},
}

// DefaultPreset is used when a session is created without one.
const DefaultPreset = "cross4"

// LookupPreset finds a preset by id.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
