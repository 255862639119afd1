package details

import (
	"strings"
	"time"
)

type Diagnosis struct {
	Diagnosis string `json:"diagnosis"`
	Remarks   string `json:"remarks,omitempty"`
}

func (d Diagnosis) Validate() error {
	if strings.TrimSpace(d.Diagnosis) == "" {
		return missing("diagnosis")
	}
	return nil
}

type Admission struct {
	Reason       string     `json:"reason"`
	Ward         string     `json:"ward,omitempty"`
	DischargedAt *time.Time `json:"discharged_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

func (a Admission) Validate() error {
	if strings.TrimSpace(a.Reason) == "" {
		return missing("reason")
	}
	return nil
}

type TestResult struct {
	TestName string `json:"test_name"`
	Result   string `json:"result"`
	Notes    string `json:"notes,omitempty"`
}

func (t TestResult) Validate() error {
	if strings.TrimSpace(t.TestName) == "" {
		return missing("test_name")
	}
	if strings.TrimSpace(t.Result) == "" {
		return missing("result")
	}
	return nil
}

// PetCondition describe una condición observada durante un tratamiento.
type PetCondition struct {
	Condition string `json:"condition"`
	Notes     string `json:"notes,omitempty"`
}

func (c PetCondition) Validate() error {
	if strings.TrimSpace(c.Condition) == "" {
		return missing("condition")
	}
	if len(c.Condition) > 255 {
		return tooLong("condition", 255)
	}
	return nil
}
