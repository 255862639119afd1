package lifecycle

import (
	"fmt"
	"strings"

	"pet-clinical-history/internal/domain/records"
)

// Entity es el nombre de tabla de una entidad afectada por el ciclo de vida.
type Entity string

// EntityPet es la raíz del cascade; se escribe siempre al final.
const EntityPet Entity = "pets"

// Dependent describe una entidad que cuelga de su padre por ForeignKey.
// Children se procesan antes que la propia entidad.
type Dependent struct {
	Entity     Entity
	ForeignKey string
	Children   []Dependent
}

// Cascade es la tabla declarativa de dependientes de una mascota.
type Cascade []Dependent

func dependent(k records.Kind, children ...Dependent) Dependent {
	return Dependent{Entity: Entity(k), ForeignKey: k.ForeignKey(), Children: children}
}

// PetCascade: logs, diagnósticos, internaciones, análisis, tratamientos
// (con sus medicaciones y condiciones) y servicios.
var PetCascade = Cascade{
	dependent(records.KindDeworming),
	dependent(records.KindVaccination),
	dependent(records.KindDiagnosis),
	dependent(records.KindAdmission),
	dependent(records.KindTestResult),
	dependent(records.KindTreatment,
		dependent(records.KindMedication),
		dependent(records.KindPetCondition),
	),
	dependent(records.KindService),
}

// Validate rechaza tablas con entradas vacías o entidades repetidas.
func (c Cascade) Validate() error {
	seen := map[Entity]bool{EntityPet: true}
	var walk func(deps []Dependent) error
	walk = func(deps []Dependent) error {
		for _, d := range deps {
			if strings.TrimSpace(string(d.Entity)) == "" || strings.TrimSpace(d.ForeignKey) == "" {
				return fmt.Errorf("cascade: entity and foreign key are required (%q)", d.Entity)
			}
			if seen[d.Entity] {
				return fmt.Errorf("cascade: entity %q appears twice", d.Entity)
			}
			seen[d.Entity] = true
			if err := walk(d.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(c)
}

// Entities devuelve todas las entidades del cascade (hijos antes que padres), más la mascota.
func (c Cascade) Entities() []Entity {
	out := make([]Entity, 0)
	var walk func(deps []Dependent)
	walk = func(deps []Dependent) {
		for _, d := range deps {
			walk(d.Children)
			out = append(out, d.Entity)
		}
	}
	walk(c)
	return append(out, EntityPet)
}
