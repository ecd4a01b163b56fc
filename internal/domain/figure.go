package domain

import "encoding/json"

// Figure is a numeric result that may be unavailable. Unavailable figures
// marshal to JSON null — never to 0 or NaN — so the UI can render "N/A"
// without mistaking it for a real zero.
type Figure struct {
	value     float64
	available bool
}

// FigureOf returns an available figure holding v.
func FigureOf(v float64) Figure {
	return Figure{value: v, available: true}
}

// Unavailable returns the unavailable sentinel.
func Unavailable() Figure {
	return Figure{}
}

// Value returns the numeric value and whether it is available.
func (f Figure) Value() (float64, bool) {
	return f.value, f.available
}

// Available reports whether the figure holds a real value.
func (f Figure) Available() bool {
	return f.available
}

func (f Figure) MarshalJSON() ([]byte, error) {
	if !f.available {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Figure) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Figure{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Figure{value: v, available: true}
	return nil
}
