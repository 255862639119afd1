package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pet-clinical-history/internal/middleware"
	"pet-clinical-history/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

// PetAccess resuelve el user dueño de una mascota y si está archivada.
// Se usa para evitar ciclos de imports entre módulos (records <-> pets).
type PetAccess interface {
	PetOwnerUser(ctx context.Context, petID string) (ownerUserID string, archived bool, err error)
}

func RegisterRoutes(r chi.Router, svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) {
	r.Route("/pets/{petID}/records/{kind}", func(rr chi.Router) {
		rr.Post("/", createForPetHandler(svc, petAccess, res))
		rr.Get("/", listForPetHandler(svc, petAccess, res))
	})

	r.Route("/treatments/{treatmentID}/records/{kind}", func(rr chi.Router) {
		rr.Post("/", createForTreatmentHandler(svc, petAccess, res))
		rr.Get("/", listForTreatmentHandler(svc, petAccess, res))
	})

	r.Route("/records/{kind}/{recordID}", func(rr chi.Router) {
		rr.Get("/", getRecordHandler(svc, petAccess, res))
		rr.Patch("/", updateRecordHandler(svc, petAccess, res))
		rr.Delete("/", deleteRecordHandler(svc, petAccess, res))
	})
}

// createRecordRequest es el cuerpo común; details depende del kind.
type createRecordRequest struct {
	Date    string          `json:"date"` // RFC3339 o YYYY-MM-DD, opcional
	Details json.RawMessage `json:"details" swaggertype:"object"`
}

type updateRecordRequest struct {
	Date    *string         `json:"date"`
	Details json.RawMessage `json:"details" swaggertype:"object"`
}

// recordResponse representa un registro clínico devuelto por la API.
type recordResponse struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	ParentType ParentType      `json:"parent_type"`
	ParentID   string          `json:"parent_id"`
	Date       time.Time       `json:"date"`
	Details    json.RawMessage `json:"details" swaggertype:"object"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

type access int

const (
	accessRead access = iota
	accessWrite
)

// authorize aplica permisos sobre la mascota dueña:
// - staff/admin (records:manage): lectura y escritura
// - owner de la mascota: solo lectura
// Escribir sobre una mascota archivada devuelve 409. El repositorio vuelve a
// validarlo al insertar (un archive puede entrar entre este chequeo y la escritura).
func authorize(w http.ResponseWriter, r *http.Request, petAccess PetAccess, res capabilities.CapabilitiesResolver, petID string, mode access) bool {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}

	ownerUserID, archived, err := petAccess.PetOwnerUser(r.Context(), petID)
	if err != nil {
		http.Error(w, "pet not found", http.StatusNotFound)
		return false
	}

	manager := middleware.HasCapability(r.Context(), res, capabilities.RecordsManage)
	if mode == accessWrite {
		if !manager {
			http.Error(w, "forbidden", http.StatusForbidden)
			return false
		}
		if archived {
			http.Error(w, "pet is archived", http.StatusConflict)
			return false
		}
		return true
	}

	if !manager && (ownerUserID == "" || ownerUserID != claims.UserID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func kindParam(w http.ResponseWriter, r *http.Request, parent ParentType) (Kind, bool) {
	k, ok := ParseKind(chi.URLParam(r, "kind"))
	if !ok || k.Parent() != parent {
		http.Error(w, "unknown record kind", http.StatusNotFound)
		return "", false
	}
	return k, true
}

// createForPetHandler godoc
// @Summary Crear registro clínico de una mascota
// @Description Crea un registro del tipo indicado (deworming-logs, vaccination-logs, diagnoses, admissions, test-results, services-availed, treatments). Requiere `records:manage` (staff/admin).
// @Tags records
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param X-Debug-Role header string false "Solo en modo dev: admin, staff u owner"
// @Param Authorization header string false "Bearer token"
// @Param petID path string true "ID de la mascota"
// @Param kind path string true "Tipo de registro"
// @Param payload body createRecordRequest true "Fecha y detalle del registro"
// @Success 201 {object} recordResponse
// @Failure 400 {string} string "invalid json / details inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found / unknown record kind"
// @Failure 409 {string} string "pet is archived"
// @Router /pets/{petID}/records/{kind} [post]
func createForPetHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := kindParam(w, r, ParentPet)
		if !ok {
			return
		}
		petID := chi.URLParam(r, "petID")
		if !authorize(w, r, petAccess, res, petID, accessWrite) {
			return
		}
		createRecord(w, r, svc, kind, petID)
	}
}

// createForTreatmentHandler godoc
// @Summary Crear registro de un tratamiento
// @Description Crea una medicación (medications) o condición (pet-conditions) bajo un tratamiento activo. Requiere `records:manage`.
// @Tags records
// @Accept json
// @Produce json
// @Param treatmentID path string true "ID del tratamiento"
// @Param kind path string true "medications | pet-conditions"
// @Param payload body createRecordRequest true "Fecha y detalle del registro"
// @Success 201 {object} recordResponse
// @Failure 400 {string} string "invalid json / details inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "treatment not found"
// @Failure 409 {string} string "pet is archived"
// @Router /treatments/{treatmentID}/records/{kind} [post]
func createForTreatmentHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := kindParam(w, r, ParentTreatment)
		if !ok {
			return
		}
		treatmentID := chi.URLParam(r, "treatmentID")
		t, err := svc.Get(r.Context(), KindTreatment, treatmentID, false)
		if err != nil {
			http.Error(w, "treatment not found", http.StatusNotFound)
			return
		}
		if !authorize(w, r, petAccess, res, t.ParentID, accessWrite) {
			return
		}
		createRecord(w, r, svc, kind, treatmentID)
	}
}

func createRecord(w http.ResponseWriter, r *http.Request, svc *Service, kind Kind, parentID string) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		t, err := parseDate(req.Date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		date = t
	}

	rec, err := svc.Create(r.Context(), kind, parentID, CreateInput{Date: date, Details: req.Details})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrParentArchived):
			http.Error(w, "pet is archived", http.StatusConflict)
		case errors.Is(err, ErrParentNotFound):
			http.Error(w, string(kind.Parent())+" not found", http.StatusNotFound)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// listForPetHandler godoc
// @Summary Listar registros clínicos de una mascota
// @Description Lista los registros del tipo indicado, más reciente primero. El dueño puede ver los de sus mascotas; staff/admin todos.
// @Tags records
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Param kind path string true "Tipo de registro"
// @Param include_archived query bool false "Incluye registros archivados"
// @Param from query string false "Fecha mínima (RFC3339 o YYYY-MM-DD)"
// @Param to query string false "Fecha máxima (RFC3339 o YYYY-MM-DD)"
// @Param limit query int false "Máximo de registros (1-200). Por defecto 50"
// @Success 200 {array} recordResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/records/{kind} [get]
func listForPetHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := kindParam(w, r, ParentPet)
		if !ok {
			return
		}
		petID := chi.URLParam(r, "petID")
		if !authorize(w, r, petAccess, res, petID, accessRead) {
			return
		}
		listRecords(w, r, svc, kind, petID)
	}
}

// listForTreatmentHandler godoc
// @Summary Listar medicaciones o condiciones de un tratamiento
// @Tags records
// @Produce json
// @Param treatmentID path string true "ID del tratamiento"
// @Param kind path string true "medications | pet-conditions"
// @Param include_archived query bool false "Incluye registros archivados"
// @Success 200 {array} recordResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "treatment not found"
// @Router /treatments/{treatmentID}/records/{kind} [get]
func listForTreatmentHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := kindParam(w, r, ParentTreatment)
		if !ok {
			return
		}
		treatmentID := chi.URLParam(r, "treatmentID")
		// Un tratamiento archivado sigue siendo consultable con include_archived.
		t, err := svc.Get(r.Context(), KindTreatment, treatmentID, true)
		if err != nil {
			http.Error(w, "treatment not found", http.StatusNotFound)
			return
		}
		if !authorize(w, r, petAccess, res, t.ParentID, accessRead) {
			return
		}
		listRecords(w, r, svc, kind, treatmentID)
	}
}

func listRecords(w http.ResponseWriter, r *http.Request, svc *Service, kind Kind, parentID string) {
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := svc.ListByParent(r.Context(), kind, parentID, filter)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]recordResponse, 0, len(items))
	for _, rec := range items {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// recordFromPath carga el registro de la URL y autoriza sobre su mascota.
func recordFromPath(w http.ResponseWriter, r *http.Request, svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver, mode access) (Record, bool) {
	kind, ok := ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		http.Error(w, "unknown record kind", http.StatusNotFound)
		return Record{}, false
	}

	includeArchived := mode == accessRead && queryBool(r, "include_archived")
	rec, err := svc.Get(r.Context(), kind, chi.URLParam(r, "recordID"), includeArchived)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return Record{}, false
	}

	petID, err := svc.PetOf(r.Context(), rec)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return Record{}, false
	}
	if !authorize(w, r, petAccess, res, petID, mode) {
		return Record{}, false
	}
	return rec, true
}

// getRecordHandler godoc
// @Summary Ver un registro clínico
// @Tags records
// @Produce json
// @Param kind path string true "Tipo de registro"
// @Param recordID path string true "ID del registro"
// @Param include_archived query bool false "Permite ver un registro archivado"
// @Success 200 {object} recordResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "record not found"
// @Router /records/{kind}/{recordID} [get]
func getRecordHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := recordFromPath(w, r, svc, petAccess, res, accessRead)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

// updateRecordHandler godoc
// @Summary Actualizar un registro clínico
// @Description PATCH: los campos de details se combinan sobre el detalle actual. Requiere `records:manage`.
// @Tags records
// @Accept json
// @Produce json
// @Param kind path string true "Tipo de registro"
// @Param recordID path string true "ID del registro"
// @Param payload body updateRecordRequest true "Campos a modificar"
// @Success 200 {object} recordResponse
// @Failure 400 {string} string "invalid json / details inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "record not found"
// @Router /records/{kind}/{recordID} [patch]
func updateRecordHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := recordFromPath(w, r, svc, petAccess, res, accessWrite)
		if !ok {
			return
		}

		var req updateRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := UpdateInput{Details: req.Details}
		if req.Date != nil {
			t, err := parseDate(*req.Date)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			in.Date = &t
		}

		updated, err := svc.Update(r.Context(), rec.Kind, rec.ID, in)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "record not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(updated))
	}
}

// deleteRecordHandler godoc
// @Summary Archivar un registro clínico
// @Description Soft-delete de un único registro. Requiere `records:manage`.
// @Tags records
// @Param kind path string true "Tipo de registro"
// @Param recordID path string true "ID del registro"
// @Success 204 "archivado"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "record not found"
// @Router /records/{kind}/{recordID} [delete]
func deleteRecordHandler(svc *Service, petAccess PetAccess, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := recordFromPath(w, r, svc, petAccess, res, accessWrite)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), rec.Kind, rec.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "record not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	filter := ListFilter{Limit: limit, IncludeArchived: queryBool(r, "include_archived")}

	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return ListFilter{}, errors.New("from must be RFC3339 or YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return ListFilter{}, errors.New("to must be RFC3339 or YYYY-MM-DD")
		}
		filter.To = &t
	}

	return filter, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("date must be RFC3339 or YYYY-MM-DD")
	}
	return t, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:         rec.ID,
		Kind:       rec.Kind.Slug(),
		ParentType: rec.Kind.Parent(),
		ParentID:   rec.ParentID,
		Date:       rec.Date,
		Details:    rec.Details,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		DeletedAt:  rec.DeletedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
