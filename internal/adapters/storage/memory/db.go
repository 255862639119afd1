package memory

import (
	"sync"

	"pet-clinical-history/internal/domain/owners"
	"pet-clinical-history/internal/domain/pets"
	"pet-clinical-history/internal/domain/records"
	"pet-clinical-history/internal/domain/users"

	"github.com/im7mortal/kmutex"
)

// DB es el storage en memoria compartido por todos los repos.
// Un único RWMutex protege todas las tablas para que el lifecycle runner
// pueda aplicar sus cambios de forma atómica para los lectores.
type DB struct {
	mu sync.RWMutex

	pets    map[string]pets.Pet
	records map[records.Kind]map[string]records.Record
	owners  map[string]owners.Owner
	users   map[string]users.User

	// locks serializa operaciones de ciclo de vida por mascota.
	locks *kmutex.Kmutex
}

func NewDB() *DB {
	db := &DB{
		pets:    make(map[string]pets.Pet),
		records: make(map[records.Kind]map[string]records.Record),
		owners:  make(map[string]owners.Owner),
		users:   make(map[string]users.User),
		locks:   kmutex.New(),
	}
	for _, k := range records.Kinds() {
		db.records[k] = make(map[string]records.Record)
	}
	return db
}
