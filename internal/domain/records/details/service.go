package details

import (
	"fmt"
	"strings"
)

// ServiceAvailed registra un servicio facturable (baño, consulta, cirugía...).
type ServiceAvailed struct {
	ServiceName string  `json:"service_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Notes       string  `json:"notes,omitempty"`
}

func (s ServiceAvailed) Validate() error {
	if strings.TrimSpace(s.ServiceName) == "" {
		return missing("service_name")
	}
	if s.Quantity < 0 || s.UnitPrice < 0 {
		return fmt.Errorf("%w: quantity and unit_price cannot be negative", ErrInvalidDetails)
	}
	return nil
}
