package pets

import (
	"strings"
	"time"
)

// Species define las especies soportadas.
// @Enum dog, cat, bird, rabbit, hamster, reptile, other
type Species string

const (
	SpeciesDog     Species = "dog"
	SpeciesCat     Species = "cat"
	SpeciesBird    Species = "bird"
	SpeciesRabbit  Species = "rabbit"
	SpeciesHamster Species = "hamster"
	SpeciesReptile Species = "reptile"
	SpeciesOther   Species = "other"
)

func (s Species) Valid() bool {
	switch s {
	case SpeciesDog, SpeciesCat, SpeciesBird, SpeciesRabbit, SpeciesHamster, SpeciesReptile, SpeciesOther:
		return true
	}
	return false
}

// Sex define el sexo de la mascota.
// @Enum male, female, unknown
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexUnknown:
		return true
	}
	return false
}

func parseSpecies(s string) Species {
	return Species(strings.ToLower(strings.TrimSpace(s)))
}

func parseSex(s string) Sex {
	v := Sex(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return SexUnknown
	}
	return v
}

// Pet representa el perfil de una mascota registrada en la clínica.
type Pet struct {
	ID      string
	OwnerID string // perfil PetOwner

	Name    string
	Species Species
	Breed   string
	Sex     Sex

	BirthDate *time.Time
	Microchip string

	Notes string

	// Photo es la referencia devuelta por el store de fotos (path o s3://...).
	Photo string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // != nil => archivada
}

func (p Pet) Archived() bool {
	return p.DeletedAt != nil
}
