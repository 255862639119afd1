package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pet-clinical-history/internal/domain/owners"
	"pet-clinical-history/internal/middleware"
	"pet-clinical-history/internal/ports/auth"
	"pet-clinical-history/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, res capabilities.CapabilitiesResolver) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/signup", signupHandler(svc))
		ar.Post("/verify-email", verifyEmailHandler(svc))
		ar.Get("/forgot-password/{email}", forgotPasswordHandler(svc))
		ar.Post("/reset-password", resetPasswordHandler(svc))
		ar.Post("/login", loginHandler(svc))
		ar.Post("/logout", logoutHandler(svc))
	})

	r.Route("/users", func(ur chi.Router) {
		ur.Use(middleware.RequireCapability(res, capabilities.UsersManage))
		ur.Post("/", createUserHandler(svc))
		ur.Get("/{userID}", getUserHandler(svc))
		ur.Post("/{userID}/deactivate", setActiveHandler(svc, false))
		ur.Post("/{userID}/activate", setActiveHandler(svc, true))
	})
}

type signupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	ContactNum string `json:"contact_num"`
	ZipcodeID  string `json:"zipcode_id"`
	Barangay   string `json:"barangay"`
	Zone       string `json:"zone"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

const (
	verificationSentMessage = "Verification code sent."
	resetSentMessage        = "If the email is registered, a reset code has been sent."
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Role          auth.Role  `json:"role"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type loginResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	User      UserResponse          `json:"user"`
	PetOwner  *owners.OwnerResponse `json:"petowner,omitempty"`
}

// signupHandler godoc
// @Summary Registro de dueño
// @Description Crea la cuenta (rol owner) y su perfil de dueño.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body signupRequest true "Cuenta y perfil"
// @Success 201 {object} map[string]int
// @Failure 400 {string} string "invalid json / validación"
// @Failure 422 {object} map[string]string
// @Router /auth/signup [post]
func signupHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		_, _, err := svc.Signup(r.Context(), SignupInput(req))
		if err != nil {
			switch {
			case errors.Is(err, ErrEmailTaken):
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": ErrEmailTaken.Error()})
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"status": http.StatusNoContent})
	}
}

// verifyEmailHandler godoc
// @Summary Enviar código de verificación
// @Description Envía un código de 6 caracteres al email. Máximo 5 intentos por minuto por email.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body emailRequest true "Email"
// @Success 200 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /auth/verify-email [post]
func verifyEmailHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		code, err := svc.VerifyEmail(r.Context(), req.Email)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrTooManyAttempts):
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": ErrTooManyAttempts.Error()})
			case errors.Is(err, ErrEmailTaken):
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": ErrEmailTaken.Error()})
			case errors.Is(err, ErrMailFailed):
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": ErrMailFailed.Error()})
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		if svc.ExposeVerificationCode() {
			writeJSON(w, http.StatusOK, map[string]string{"code": code})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": verificationSentMessage})
	}
}

// forgotPasswordHandler godoc
// @Summary Recuperar contraseña
// @Description Envía un código de recuperación por correo. La respuesta es la misma exista o no la cuenta.
// @Tags auth
// @Produce json
// @Param email path string true "Email de la cuenta"
// @Success 200 {object} map[string]string
// @Router /auth/forgot-password/{email} [get]
func forgotPasswordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ForgotPassword(r.Context(), chi.URLParam(r, "email")); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": resetSentMessage})
	}
}

// resetPasswordHandler godoc
// @Summary Cambiar contraseña con código
// @Description Máximo 5 intentos por email cada 15 minutos.
// @Tags auth
// @Accept json
// @Param payload body resetPasswordRequest true "Email, código recibido por correo y nueva contraseña"
// @Success 204
// @Failure 400 {string} string "validación"
// @Failure 422 {string} string "invalid or expired reset code"
// @Failure 429 {object} map[string]string
// @Router /auth/reset-password [post]
func resetPasswordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := svc.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrInvalidResetCode):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, ErrTooManyAttempts):
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": ErrTooManyAttempts.Error()})
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// loginHandler godoc
// @Summary Iniciar sesión
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} loginResponse
// @Failure 422 {object} map[string]string
// @Router /auth/login [post]
func loginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrDeactivated):
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		out := loginResponse{
			Token:     res.Token,
			ExpiresAt: res.Claims.ExpiresAt,
			User:      ToUserResponse(res.User),
		}
		if res.Owner != nil {
			o := owners.ToOwnerResponse(*res.Owner)
			out.PetOwner = &o
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// logoutHandler godoc
// @Summary Cerrar sesión
// @Description Revoca el token actual.
// @Tags auth
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Router /auth/logout [post]
func logoutHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := svc.Logout(r.Context(), claims); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// createUserHandler godoc
// @Summary Crear usuario
// @Description Alta de cuentas staff/admin. Requiere `users:manage`.
// @Tags users
// @Accept json
// @Produce json
// @Param payload body createUserRequest true "Cuenta"
// @Success 201 {object} UserResponse
// @Failure 400 {string} string "validación"
// @Failure 409 {string} string "email already used"
// @Router /users [post]
func createUserHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		role := auth.Role(strings.ToLower(strings.TrimSpace(req.Role)))
		u, err := svc.CreateUser(r.Context(), req.Email, req.Password, role)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrEmailTaken):
				http.Error(w, "email already used", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, ToUserResponse(u))
	}
}

// getUserHandler godoc
// @Summary Ver usuario
// @Tags users
// @Produce json
// @Param userID path string true "ID del usuario"
// @Success 200 {object} UserResponse
// @Failure 404 {string} string "user not found"
// @Router /users/{userID} [get]
func getUserHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ToUserResponse(u))
	}
}

// setActiveHandler godoc
// @Summary Activar / desactivar cuenta
// @Tags users
// @Produce json
// @Param userID path string true "ID del usuario"
// @Success 200 {object} UserResponse
// @Failure 404 {string} string "user not found"
// @Router /users/{userID}/deactivate [post]
// @Router /users/{userID}/activate [post]
func setActiveHandler(svc *Service, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.SetActive(r.Context(), chi.URLParam(r, "userID"), active)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ToUserResponse(u))
	}
}

func ToUserResponse(u User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		DeactivatedAt: u.DeactivatedAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
