package details

import "strings"

// Medication cuelga de un Treatment. AM/PM indican las tomas del día.
type Medication struct {
	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage"`
	Description  string `json:"description,omitempty"`
	AM           bool   `json:"am"`
	PM           bool   `json:"pm"`
}

func (m Medication) Validate() error {
	if strings.TrimSpace(m.MedicineName) == "" {
		return missing("medicine_name")
	}
	if strings.TrimSpace(m.Dosage) == "" {
		return missing("dosage")
	}
	return nil
}
