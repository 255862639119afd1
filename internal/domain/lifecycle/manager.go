package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-clinical-history/internal/platform/logger"
	"pet-clinical-history/internal/platform/metrics"
)

// Op es una de las tres transiciones de grupo.
type Op string

const (
	OpArchive Op = "archive"
	OpRestore Op = "restore"
	OpPurge   Op = "purge"
)

// requires es el estado que debe tener la mascota para aplicar la operación.
func (o Op) requires() State {
	switch o {
	case OpArchive:
		return StateActive
	case OpRestore:
		return StateArchived
	default:
		return StateAny
	}
}

// Result resume lo escrito por una operación exitosa.
type Result struct {
	Op    Op
	PetID string
	Steps []Step
}

// Manager aplica archive/restore/purge a una mascota y a todo su cascade
// dentro de un único scope del Runner.
type Manager struct {
	runner  Runner
	cascade Cascade
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Manager)

func WithCascade(c Cascade) Option {
	return func(m *Manager) { m.cascade = c }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(runner Runner, opts ...Option) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("lifecycle: runner is required")
	}
	m := &Manager{
		runner:  runner,
		cascade: PetCascade,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.cascade.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Archive soft-deletea la mascota activa y todos sus dependientes activos.
func (m *Manager) Archive(ctx context.Context, petID string) (Result, error) {
	return m.run(ctx, OpArchive, petID)
}

// Restore reactiva la mascota archivada y todos sus dependientes archivados.
func (m *Manager) Restore(ctx context.Context, petID string) (Result, error) {
	return m.run(ctx, OpRestore, petID)
}

// Purge borra definitivamente la mascota (activa o archivada) y todos sus dependientes.
func (m *Manager) Purge(ctx context.Context, petID string) (Result, error) {
	return m.run(ctx, OpPurge, petID)
}

func (m *Manager) run(ctx context.Context, op Op, petID string) (Result, error) {
	start := m.now()
	petID = strings.TrimSpace(petID)
	res := Result{Op: op, PetID: petID}

	var err error
	if petID == "" {
		err = ErrNotFound
	} else {
		err = m.runner.RunInTx(ctx, petID, func(tx Store) error {
			// Un Runner podría reintentar fn; cada intento arranca de cero.
			res.Steps = res.Steps[:0]

			state, err := tx.LockPet(ctx, petID)
			if err != nil {
				return err
			}
			if !op.requires().Matches(state == StateArchived) {
				return ErrNotFound
			}

			if err := m.walk(ctx, tx, op, m.cascade, []string{petID}, &res.Steps); err != nil {
				return err
			}

			// La mascota es siempre la última escritura.
			if err := apply(ctx, tx, op, EntityPet, []string{petID}); err != nil {
				return fmt.Errorf("%s %s: %w", op, EntityPet, err)
			}
			res.Steps = append(res.Steps, Step{Entity: EntityPet, Rows: 1})
			return nil
		})
	}

	err = m.classify(op, petID, res.Steps, err)
	m.observe(op, petID, start, res.Steps, err)
	if err != nil {
		return Result{Op: op, PetID: petID}, err
	}
	return res, nil
}

// walk recorre el cascade en profundidad: primero los hijos de cada entidad,
// después la entidad misma. Los hijos se buscan bajo todas las filas del padre
// (activas o no) para que ningún nieto quede más vivo que la mascota.
func (m *Manager) walk(ctx context.Context, tx Store, op Op, deps []Dependent, parentIDs []string, applied *[]Step) error {
	for _, d := range deps {
		if len(d.Children) > 0 {
			all, err := tx.FindIDs(ctx, d.Entity, d.ForeignKey, parentIDs, StateAny)
			if err != nil {
				return fmt.Errorf("find %s: %w", d.Entity, err)
			}
			if len(all) > 0 {
				if err := m.walk(ctx, tx, op, d.Children, all, applied); err != nil {
					return err
				}
			}
		}

		ids, err := tx.FindIDs(ctx, d.Entity, d.ForeignKey, parentIDs, rowsFor(op))
		if err != nil {
			return fmt.Errorf("find %s: %w", d.Entity, err)
		}
		if len(ids) == 0 {
			continue
		}
		if err := apply(ctx, tx, op, d.Entity, ids); err != nil {
			return fmt.Errorf("%s %s: %w", op, d.Entity, err)
		}
		*applied = append(*applied, Step{Entity: d.Entity, Rows: len(ids)})
	}
	return nil
}

// rowsFor: filas de dependientes que toca cada operación.
func rowsFor(op Op) State {
	switch op {
	case OpArchive:
		return StateActive
	case OpRestore:
		return StateArchived
	default:
		return StateAny
	}
}

func apply(ctx context.Context, tx Store, op Op, entity Entity, ids []string) error {
	switch op {
	case OpArchive:
		return tx.SoftDelete(ctx, entity, ids)
	case OpRestore:
		return tx.Restore(ctx, entity, ids)
	case OpPurge:
		return tx.Purge(ctx, entity, ids)
	}
	return fmt.Errorf("unknown lifecycle op %q", op)
}

// classify traduce el error del Runner a la taxonomía del paquete.
func (m *Manager) classify(op Op, petID string, applied []Step, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) && len(applied) == 0 {
		return fmt.Errorf("%s pet %q: %w", op, petID, ErrNotFound)
	}
	// Sin transacción real, lo aplicado queda aplicado y hay que informarlo.
	if !m.runner.Transactional() && len(applied) > 0 {
		steps := make([]Step, len(applied))
		copy(steps, applied)
		return &PartialFailureError{Op: op, PetID: petID, Applied: steps, Err: err}
	}
	return fmt.Errorf("%s pet %q: %w", op, petID, err)
}

func (m *Manager) observe(op Op, petID string, start time.Time, steps []Step, err error) {
	elapsed := m.now().Sub(start)
	result := resultLabel(err)
	m.metrics.ObserveLifecycle(string(op), result, elapsed.Seconds())

	fields := map[string]any{
		"op":          string(op),
		"pet_id":      petID,
		"result":      result,
		"duration_ms": elapsed.Milliseconds(),
	}
	rows := 0
	for _, s := range steps {
		rows += s.Rows
	}
	fields["rows"] = rows

	switch result {
	case "ok":
		m.log.Info("pet lifecycle transition", fields)
	case "not_found":
		m.log.Debug("pet lifecycle transition", fields)
	default:
		fields["error"] = err
		m.log.Error("pet lifecycle transition failed", fields)
	}
}

func resultLabel(err error) string {
	var partial *PartialFailureError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &partial):
		return "partial_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
