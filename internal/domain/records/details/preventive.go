package details

import (
	"strings"
	"time"
)

// Deworming modela una desparasitación aplicada.
type Deworming struct {
	Product        string     `json:"product"`
	Dose           string     `json:"dose,omitempty"`
	Weight         string     `json:"weight,omitempty"`
	AdministeredBy string     `json:"administered_by,omitempty"`
	NextDue        *time.Time `json:"next_due,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

func (d Deworming) Validate() error {
	if strings.TrimSpace(d.Product) == "" {
		return missing("product")
	}
	return nil
}

// Vaccination modela una vacuna aplicada.
type Vaccination struct {
	Against        string     `json:"against"`
	Manufacturer   string     `json:"manufacturer,omitempty"`
	Dose           string     `json:"dose,omitempty"`
	Weight         string     `json:"weight,omitempty"`
	AdministeredBy string     `json:"administered_by,omitempty"`
	NextDue        *time.Time `json:"next_due,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

func (v Vaccination) Validate() error {
	if strings.TrimSpace(v.Against) == "" {
		return missing("against")
	}
	return nil
}
