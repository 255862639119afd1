package details

import (
	"fmt"
	"strings"
)

// Vitals son las mediciones tomadas al abrir un tratamiento.
type Vitals struct {
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	HeartRate    *int     `json:"heart_rate,omitempty"`
}

// Treatment es la cabecera de un tratamiento; medications y pet_conditions cuelgan de él.
type Treatment struct {
	Title     string `json:"title"`
	Vitals    Vitals `json:"vitals"`
	Prognosis string `json:"prognosis,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func (t Treatment) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return missing("title")
	}
	if w := t.Vitals.WeightKg; w != nil && *w <= 0 {
		return fmt.Errorf("%w: weight_kg must be positive", ErrInvalidDetails)
	}
	return nil
}
