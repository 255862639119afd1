package pets

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pet-clinical-history/internal/domain/lifecycle"
	"pet-clinical-history/internal/middleware"
	"pet-clinical-history/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, res capabilities.CapabilitiesResolver) {
	manage := middleware.RequireCapability(res, capabilities.PetsManage)
	archive := middleware.RequireCapability(res, capabilities.PetsArchive)
	purge := middleware.RequireCapability(res, capabilities.PetsPurge)

	r.Route("/pets", func(pr chi.Router) {
		pr.With(manage).Get("/", listPetsHandler(svc))
		pr.With(manage).Get("/search/{name}", searchPetsHandler(svc))
		pr.With(manage).Get("/archived", listArchivedHandler(svc))

		// Perfil de mascota (staff/admin o dueño)
		pr.Get("/{petID}", getPetHandler(svc, res))
		pr.Patch("/{petID}", updatePetHandler(svc, res))
		pr.Post("/{petID}/photo", uploadPhotoHandler(svc, res))

		// Ciclo de vida: la mascota y todo su historial juntos
		pr.With(archive).Post("/{petID}/archive", archivePetHandler(svc))
		pr.With(archive).Post("/{petID}/restore", restorePetHandler(svc))
		pr.With(purge).Delete("/{petID}", purgePetHandler(svc))
	})

	// Mascotas de un dueño
	r.Route("/owners/{ownerID}/pets", func(or chi.Router) {
		or.With(manage).Post("/", createPetHandler(svc))
		or.Get("/", listOwnerPetsHandler(svc, res))
		or.Get("/count", countOwnerPetsHandler(svc, res))
		or.Get("/search/{name}", searchOwnerPetsHandler(svc, res))
	})
}

type createPetRequest struct {
	Name      string `json:"name"`
	Species   string `json:"species"`
	Breed     string `json:"breed"`
	Sex       string `json:"sex"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD opcional
	Microchip string `json:"microchip"`
	Notes     string `json:"notes"`
}

type petResponse struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Species   Species    `json:"species"`
	Breed     string     `json:"breed"`
	Sex       Sex        `json:"sex"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Microchip string     `json:"microchip,omitempty"`
	Notes     string     `json:"notes"`
	Photo     string     `json:"photo,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type petPageResponse struct {
	Data        []petResponse `json:"data"`
	Total       int           `json:"total"`
	CurrentPage int           `json:"current_page"`
	PerPage     int           `json:"per_page"`
	LastPage    int           `json:"last_page"`
}

type updatePetRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name      *string `json:"name"`
	Species   *string `json:"species"`
	Breed     *string `json:"breed"`
	Sex       *string `json:"sex"`
	Microchip *string `json:"microchip"`
	Notes     *string `json:"notes"`
}

type partialFailureResponse struct {
	Message string           `json:"message"`
	Applied []lifecycle.Step `json:"applied"`
}

// createPetHandler godoc
// @Summary Registrar mascota de un dueño
// @Description Crea una mascota para el dueño indicado. Acepta JSON o multipart/form-data (con campo opcional `photo`). Requiere `pets:manage`.
// @Tags pets
// @Accept json,mpfd
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param X-Debug-Role header string false "Solo en modo dev: admin, staff u owner"
// @Param Authorization header string false "Bearer token"
// @Param ownerID path string true "ID del dueño"
// @Param payload body createPetRequest true "Datos de la mascota"
// @Success 201 {object} petResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "owner not found"
// @Failure 413 {string} string "photo too large"
// @Router /owners/{ownerID}/pets [post]
func createPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPetRequest
		var photo *PhotoUpload

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+1<<20)
			if err := r.ParseMultipartForm(MaxPhotoBytes + 1<<20); err != nil {
				var tooBig *http.MaxBytesError
				if errors.As(err, &tooBig) {
					http.Error(w, "photo too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "invalid multipart form", http.StatusBadRequest)
				return
			}
			req = createPetRequest{
				Name:      r.FormValue("name"),
				Species:   r.FormValue("species"),
				Breed:     r.FormValue("breed"),
				Sex:       r.FormValue("sex"),
				BirthDate: r.FormValue("birth_date"),
				Microchip: r.FormValue("microchip"),
				Notes:     r.FormValue("notes"),
			}
			if f, hdr, err := r.FormFile("photo"); err == nil {
				defer f.Close()
				photo = &PhotoUpload{Filename: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Body: f}
			}
		} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			bd = &t
		}

		p, err := svc.Create(r.Context(), chi.URLParam(r, "ownerID"), CreateInput{
			Name:      req.Name,
			Species:   req.Species,
			Breed:     req.Breed,
			Sex:       req.Sex,
			BirthDate: bd,
			Microchip: req.Microchip,
			Notes:     req.Notes,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrOwnerNotFound):
				http.Error(w, "owner not found", http.StatusNotFound)
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		if photo != nil {
			withPhoto, err := svc.SetPhoto(r.Context(), p.ID, *photo)
			if err != nil {
				// La mascota ya quedó creada; informamos el problema de la foto.
				writePhotoError(w, err)
				return
			}
			p = withPhoto
		}

		writeJSON(w, http.StatusCreated, toPetResponse(p))
	}
}

// listPetsHandler godoc
// @Summary Listar mascotas activas
// @Description Lista paginada (50 por página) ordenada por nombre. Requiere `pets:manage`.
// @Tags pets
// @Produce json
// @Param page query int false "Página (desde 1)"
// @Success 200 {object} petPageResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /pets [get]
func listPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.List(r.Context(), pageParam(r))
		writePage(w, p, err)
	}
}

// searchPetsHandler godoc
// @Summary Buscar mascotas por nombre
// @Tags pets
// @Produce json
// @Param name path string true "Texto a buscar"
// @Param page query int false "Página (desde 1)"
// @Success 200 {object} petPageResponse
// @Router /pets/search/{name} [get]
func searchPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Search(r.Context(), chi.URLParam(r, "name"), pageParam(r))
		writePage(w, p, err)
	}
}

// listArchivedHandler godoc
// @Summary Listar mascotas archivadas
// @Description Archivadas, la más reciente primero. Requiere `pets:manage`.
// @Tags pets
// @Produce json
// @Param page query int false "Página (desde 1)"
// @Success 200 {object} petPageResponse
// @Router /pets/archived [get]
func listArchivedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.ListArchived(r.Context(), pageParam(r))
		writePage(w, p, err)
	}
}

// authorizePet: staff/admin (pets:manage) cualquier mascota; el dueño solo las suyas.
func authorizePet(w http.ResponseWriter, r *http.Request, svc *Service, res capabilities.CapabilitiesResolver) (Pet, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Pet{}, false
	}

	p, err := svc.GetByID(r.Context(), chi.URLParam(r, "petID"))
	if err != nil {
		http.Error(w, "pet not found", http.StatusNotFound)
		return Pet{}, false
	}

	if middleware.HasCapability(r.Context(), res, capabilities.PetsManage) {
		return p, true
	}
	ownerUser, err := svc.OwnerUserOf(r.Context(), p)
	if err != nil || ownerUser == "" || ownerUser != claims.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return Pet{}, false
	}
	return p, true
}

// authorizeOwner aplica la misma regla para rutas /owners/{ownerID}/pets.
func authorizeOwner(w http.ResponseWriter, r *http.Request, svc *Service, res capabilities.CapabilitiesResolver) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}

	ownerID := chi.URLParam(r, "ownerID")
	userID, err := svc.OwnerUserByID(r.Context(), ownerID)
	if err != nil {
		http.Error(w, "owner not found", http.StatusNotFound)
		return "", false
	}
	if !middleware.HasCapability(r.Context(), res, capabilities.PetsManage) && (userID == "" || userID != claims.UserID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return ownerID, true
}

// getPetHandler godoc
// @Summary Ver mascota
// @Description Staff/admin ven cualquier mascota activa; el dueño solo las suyas.
// @Tags pets
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Success 200 {object} petResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [get]
func getPetHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authorizePet(w, r, svc, res)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toPetResponse(p))
	}
}

// updatePetHandler godoc
// @Summary Actualizar mascota
// @Description PATCH del perfil. `birth_date: null` limpia la fecha.
// @Tags pets
// @Accept json
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Param payload body updatePetRequest true "Campos a modificar"
// @Success 200 {object} petResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [patch]
func updatePetHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := authorizePet(w, r, svc, res)
		if !ok {
			return
		}

		// Para soportar birth_date: null, necesitamos detectar presencia del campo.
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		bd := BirthDatePatch{}
		if v, exists := raw["birth_date"]; exists {
			bd.Present = true
			delete(raw, "birth_date")
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				t, err := time.Parse("2006-01-02", s)
				if err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				bd.Value = &t
			}
		}

		// Re-marshal sin birth_date y decode estricto al struct para reutilizar tags
		var req updatePetRequest
		b, _ := json.Marshal(raw)
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.UpdateProfile(r.Context(), current.ID, UpdateProfileInput{
			Name:      req.Name,
			Species:   req.Species,
			Breed:     req.Breed,
			Sex:       req.Sex,
			BirthDate: bd,
			Microchip: req.Microchip,
			Notes:     req.Notes,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "pet not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toPetResponse(updated))
	}
}

// uploadPhotoHandler godoc
// @Summary Subir foto de la mascota
// @Description Campo `photo` (jpeg, png, gif, svg; máximo 2048 KB). Reemplaza y borra la foto anterior.
// @Tags pets
// @Accept mpfd
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Param photo formData file true "Imagen"
// @Success 200 {object} map[string]string
// @Failure 400 {string} string "Please select an image"
// @Failure 413 {string} string "photo too large"
// @Failure 422 {string} string "tipo de archivo inválido"
// @Router /pets/{petID}/photo [post]
func uploadPhotoHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authorizePet(w, r, svc, res)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+1<<20)
		f, hdr, err := r.FormFile("photo")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Please select an image"})
			return
		}
		defer f.Close()

		if _, err := svc.SetPhoto(r.Context(), p.ID, PhotoUpload{
			Filename:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Body:        f,
		}); err != nil {
			writePhotoError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"success": "Image uploaded successfully"})
	}
}

func writePhotoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPhotoTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrPhotoType):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "pet not found", http.StatusNotFound)
	case errors.Is(err, ErrPhotoNotEnabled):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// archivePetHandler godoc
// @Summary Archivar mascota
// @Description Archiva la mascota activa junto con todo su historial clínico en una sola transacción. Requiere `pets:archive`.
// @Tags pets
// @Produce plain
// @Param petID path string true "ID de la mascota"
// @Success 200 {string} string "Pet was archived."
// @Failure 404 {string} string "pet not found"
// @Failure 500 {object} partialFailureResponse
// @Failure 503 {string} string "storage unavailable"
// @Router /pets/{petID}/archive [post]
func archivePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Archive(r.Context(), chi.URLParam(r, "petID")); err != nil {
			writeLifecycleError(w, err)
			return
		}
		writeText(w, http.StatusOK, "Pet was archived.")
	}
}

// restorePetHandler godoc
// @Summary Restaurar mascota
// @Description Reactiva la mascota archivada y todo su historial. Requiere `pets:archive`.
// @Tags pets
// @Produce plain
// @Param petID path string true "ID de la mascota"
// @Success 200 {string} string "Pet restored successfully"
// @Failure 404 {string} string "pet not found"
// @Failure 503 {string} string "storage unavailable"
// @Router /pets/{petID}/restore [post]
func restorePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Restore(r.Context(), chi.URLParam(r, "petID")); err != nil {
			writeLifecycleError(w, err)
			return
		}
		writeText(w, http.StatusOK, "Pet restored successfully")
	}
}

// purgePetHandler godoc
// @Summary Borrar mascota definitivamente
// @Description Borra la mascota (activa o archivada) y todo su historial. Irreversible. Requiere `pets:purge` (admin).
// @Tags pets
// @Produce plain
// @Param petID path string true "ID de la mascota"
// @Success 200 {string} string "Permanently Deleted"
// @Failure 404 {string} string "pet not found"
// @Failure 503 {string} string "storage unavailable"
// @Router /pets/{petID} [delete]
func purgePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Purge(r.Context(), chi.URLParam(r, "petID")); err != nil {
			writeLifecycleError(w, err)
			return
		}
		writeText(w, http.StatusOK, "Permanently Deleted")
	}
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	var partial *lifecycle.PartialFailureError
	switch {
	case errors.As(err, &partial):
		writeJSON(w, http.StatusInternalServerError, partialFailureResponse{
			Message: "operation partially applied",
			Applied: partial.Applied,
		})
	case errors.Is(err, lifecycle.ErrNotFound):
		http.Error(w, "pet not found", http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrStorageUnavailable):
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// listOwnerPetsHandler godoc
// @Summary Listar mascotas de un dueño
// @Tags pets
// @Produce json
// @Param ownerID path string true "ID del dueño"
// @Param page query int false "Página (desde 1)"
// @Success 200 {object} petPageResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "owner not found"
// @Router /owners/{ownerID}/pets [get]
func listOwnerPetsHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := authorizeOwner(w, r, svc, res)
		if !ok {
			return
		}
		p, err := svc.ListByOwner(r.Context(), ownerID, "", pageParam(r))
		writePage(w, p, err)
	}
}

// countOwnerPetsHandler godoc
// @Summary Contar mascotas activas de un dueño
// @Tags pets
// @Produce json
// @Param ownerID path string true "ID del dueño"
// @Success 200 {object} map[string]int
// @Router /owners/{ownerID}/pets/count [get]
func countOwnerPetsHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := authorizeOwner(w, r, svc, res)
		if !ok {
			return
		}
		n, err := svc.CountByOwner(r.Context(), ownerID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"data": n})
	}
}

// searchOwnerPetsHandler godoc
// @Summary Buscar mascotas de un dueño por nombre
// @Tags pets
// @Produce json
// @Param ownerID path string true "ID del dueño"
// @Param name path string true "Texto a buscar"
// @Success 200 {object} petPageResponse
// @Router /owners/{ownerID}/pets/search/{name} [get]
func searchOwnerPetsHandler(svc *Service, res capabilities.CapabilitiesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := authorizeOwner(w, r, svc, res)
		if !ok {
			return
		}
		p, err := svc.ListByOwner(r.Context(), ownerID, chi.URLParam(r, "name"), pageParam(r))
		writePage(w, p, err)
	}
}

func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func writePage(w http.ResponseWriter, p Page, err error) {
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]petResponse, 0, len(p.Items))
	for _, pet := range p.Items {
		out = append(out, toPetResponse(pet))
	}
	writeJSON(w, http.StatusOK, petPageResponse{
		Data:        out,
		Total:       p.Total,
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		LastPage:    p.LastPage,
	})
}

func toPetResponse(p Pet) petResponse {
	return petResponse{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		Species:   p.Species,
		Breed:     p.Breed,
		Sex:       p.Sex,
		BirthDate: p.BirthDate,
		Microchip: p.Microchip,
		Notes:     p.Notes,
		Photo:     p.Photo,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		DeletedAt: p.DeletedAt,
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
