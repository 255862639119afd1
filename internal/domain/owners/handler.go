package owners

import (
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

func RegisterRoutes(r chi.Router, svc *Service, res capabilities.CapabilitiesResolver) {
	r.Route("/owners", func(or chi.Router) {
		or.With(middleware.RequireCapability(res, capabilities.OwnersManage)).Post("/", createOwnerHandler(svc))
		or.With(middleware.RequireCapability(res, capabilities.OwnersManage)).Get("/", listOwnersHandler(svc))

		// Perfil propio (rol owner)
		or.Get("/me", myOwnerHandler(svc))

		or.Get("/{ownerID}", getOwnerHandler(svc, res))
		or.Patch("/{ownerID}", updateOwnerHandler(svc, res))
	})
}

type createOwnerRequest struct {
	UserID     string `json:"user_id"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	Email      string `json:"email"`
	ContactNum string `json:"contact_num"`
	ZipcodeID  string `json:"zipcode_id"`
	Barangay   string `json:"barangay"`
	Zone       string `json:"zone"`
}

type updateOwnerRequest struct {
	Firstname  *string `json:"firstname"`
	Lastname   *string `json:"lastname"`
	Email      *string `json:"email"`
	ContactNum *string `json:"contact_num"`
	ZipcodeID  *string `json:"zipcode_id"`
	Barangay   *string `json:"barangay"`
	Zone       *string `json:"zone"`
}

// OwnerResponse es exportado porque users lo reutiliza en login/signup.
type OwnerResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Firstname  string    `json:"firstname"`
	Lastname   string    `json:"lastname"`
	Email      string    `json:"email"`
	ContactNum string    `json:"contact_num"`
	ZipcodeID  string    `json:"zipcode_id"`
	Barangay   string    `json:"barangay"`
	Zone       string    `json:"zone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ownerPageResponse struct {
	Data        []OwnerResponse `json:"data"`
	Total       int             `json:"total"`
	CurrentPage int             `json:"current_page"`
	PerPage     int             `json:"per_page"`
	LastPage    int             `json:"last_page"`
}

// createOwnerHandler godoc
// @Summary Registrar dueño
// @Description Crea un perfil PetOwner. Requiere `owners:manage` (staff/admin).
// @Tags owners
// @Accept json
// @Produce json
// @Param payload body createOwnerRequest true "Datos del dueño"
// @Success 201 {object} OwnerResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /owners [post]
func createOwnerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOwnerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		o, err := svc.Create(r.Context(), CreateInput(req))
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, ToOwnerResponse(o))
	}
}

// listOwnersHandler godoc
// @Summary Listar dueños
// @Description Lista paginada (50 por página) ordenada por apellido. Requiere `owners:manage`.
// @Tags owners
// @Produce json
// @Param page query int false "Página (desde 1)"
// @Param name query string false "Filtro por nombre"
// @Success 200 {object} ownerPageResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /owners [get]
func listOwnersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		p, err := svc.List(r.Context(), r.URL.Query().Get("name"), page)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]OwnerResponse, 0, len(p.Items))
		for _, o := range p.Items {
			out = append(out, ToOwnerResponse(o))
		}
		writeJSON(w, http.StatusOK, ownerPageResponse{
			Data:        out,
			Total:       p.Total,
			CurrentPage: p.Page,
			PerPage:     p.PerPage,
			LastPage:    p.LastPage,
		})
	}
}

// myOwnerHandler godoc
// @Summary Perfil del dueño autenticado
// @Tags owners
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 200 {object} OwnerResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "owner not found"
// @Router /owners/me [get]
func myOwnerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		o, err := svc.GetByUserID(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "owner not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, ToOwnerResponse(o))
	}
}

// loadAuthorized: staff/admin ven cualquier dueño; un owner solo su propio perfil.
func loadAuthorized(w http.ResponseWriter, r *http.Request, svc *Service, res capabilities.CapabilitiesResolver) (Owner, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Owner{}, false
	}

	o, err := svc.Get(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		http.Error(w, "owner not found", http.StatusNotFound)
		return Owner{}, false
	}

	if o.UserID != claims.UserID && !middleware.HasCapability(r.Context(), res, capabilities.OwnersManage) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return Owner{}, false
	}
	return o, true
}

// getOwnerHandler godoc
// @Summary Ver dueño
// @Tags owners
// @Produce json
// @Param ownerID path string true "ID del dueño"
// @Success 200 {object} OwnerResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "owner not found"
// @Router /owners/{ownerID} [get]
func getOwnerHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok := loadAuthorized(w, r, svc, res)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, ToOwnerResponse(o))
	}
}

// updateOwnerHandler godoc
// @Summary Actualizar dueño
// @Tags owners
// @Accept json
// @Produce json
// @Param ownerID path string true "ID del dueño"
// @Param payload body updateOwnerRequest true "Campos a modificar"
// @Success 200 {object} OwnerResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "owner not found"
// @Router /owners/{ownerID} [patch]
func updateOwnerHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok := loadAuthorized(w, r, svc, res)
		if !ok {
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		var req updateOwnerRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.Update(r.Context(), o.ID, UpdateInput(req))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "owner not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, ToOwnerResponse(updated))
	}
}

func ToOwnerResponse(o Owner) OwnerResponse {
	return OwnerResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Firstname:  o.Firstname,
		Lastname:   o.Lastname,
		Email:      o.Email,
		ContactNum: o.ContactNum,
		ZipcodeID:  o.ZipcodeID,
		Barangay:   o.Barangay,
		Zone:       o.Zone,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
