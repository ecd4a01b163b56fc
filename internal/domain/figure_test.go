package domain

import (
	"encoding/json"
	"testing"
)

func TestFigureMarshalsUnavailableAsNull(t *testing.T) {
	out, err := json.Marshal(struct {
		Rate   Figure `json:"rate"`
		Growth Figure `json:"growth"`
	}{
		Rate:   FigureOf(4.2),
		Growth: Unavailable(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(out), `{"rate":4.2,"growth":null}`; got != want {
		t.Errorf("marshal = %s, want %s", got, want)
	}
}

func TestFigureUnmarshal(t *testing.T) {
	var s struct {
		Rate   Figure `json:"rate"`
		Growth Figure `json:"growth"`
	}
	if err := json.Unmarshal([]byte(`{"rate": 1.5, "growth": null}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if v, ok := s.Rate.Value(); !ok || v != 1.5 {
		t.Errorf("rate = (%v, %v), want (1.5, true)", v, ok)
	}
	if s.Growth.Available() {
		t.Error("null should unmarshal as unavailable")
	}
}
