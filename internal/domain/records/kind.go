package records

import "strings"

// Kind identifica un tipo de registro clínico. El valor coincide con el nombre de tabla.
type Kind string

const (
	KindDeworming    Kind = "deworming_logs"
	KindVaccination  Kind = "vaccination_logs"
	KindDiagnosis    Kind = "diagnoses"
	KindAdmission    Kind = "admissions"
	KindTestResult   Kind = "test_results"
	KindService      Kind = "services_availed"
	KindTreatment    Kind = "treatments"
	KindMedication   Kind = "medications"
	KindPetCondition Kind = "pet_conditions"
)

// ParentType indica a qué entidad cuelga un registro.
type ParentType string

const (
	ParentPet       ParentType = "pet"
	ParentTreatment ParentType = "treatment"
)

// Columnas de FK usadas por storage y por el cascade de ciclo de vida.
const (
	ForeignKeyPet       = "pet_id"
	ForeignKeyTreatment = "treatment_id"
)

var allKinds = []Kind{
	KindDeworming,
	KindVaccination,
	KindDiagnosis,
	KindAdmission,
	KindTestResult,
	KindService,
	KindTreatment,
	KindMedication,
	KindPetCondition,
}

// Kinds devuelve todos los tipos soportados, en orden estable.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k Kind) Valid() bool {
	for _, v := range allKinds {
		if v == k {
			return true
		}
	}
	return false
}

func (k Kind) Parent() ParentType {
	switch k {
	case KindMedication, KindPetCondition:
		return ParentTreatment
	default:
		return ParentPet
	}
}

func (k Kind) ForeignKey() string {
	if k.Parent() == ParentTreatment {
		return ForeignKeyTreatment
	}
	return ForeignKeyPet
}

// Slug es la forma usada en URLs: "vaccination-logs".
func (k Kind) Slug() string {
	return strings.ReplaceAll(string(k), "_", "-")
}

// ParseKind acepta tanto el slug como el nombre de tabla.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.Valid() {
		return "", false
	}
	return k, true
}
