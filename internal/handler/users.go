package handler

import (
	"errors"
	"net/http"

	"strconv"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/apierror"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/dto"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type UsersHandler struct {
	svc     service.EnrollmentService
	users   repository.UserRepository
	pinHash string
}

func NewUsersHandler(svc service.EnrollmentService, users repository.UserRepository, supervisorPINHash string) *UsersHandler {
	return &UsersHandler{svc: svc, users: users, pinHash: supervisorPINHash}
}

func (h *UsersHandler) checkPIN(c *gin.Context, pin string) bool {
	if bcrypt.CompareHashAndPassword([]byte(h.pinHash), []byte(pin)) != nil {
		c.JSON(http.StatusForbidden, apierror.New("PIN de supervisor invalido"))
		return false
	}
	return true
}

// Enroll registers a user on this terminal, optionally capturing a
// fingerprint. Requires the supervisor PIN on every call.
func (h *UsersHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if !h.checkPIN(c, req.SupervisorPIN) {
		return
	}

	user, err := h.svc.Enroll(c.Request.Context(), service.EnrollInput{
		Cedula:     req.Cedula,
		Nombre:     req.Nombre,
		Empresa:    req.Empresa,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCedula),
			errors.Is(err, service.ErrInvalidNombre),
			errors.Is(err, service.ErrTemplateRange):
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		case errors.Is(err, service.ErrTemplateInUse):
			c.JSON(http.StatusConflict, apierror.New(err.Error()))
		case errors.Is(err, service.ErrSensorUnavailable):
			c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, apierror.New("Error al registrar usuario"))
		}
		return
	}

	c.JSON(http.StatusCreated, dto.EnrollResponse{
		User: dto.VerifiedUser{
			ID:      user.ID,
			Cedula:  user.Cedula,
			Nombre:  user.Nombre,
			Empresa: user.Empresa,
		},
		TemplateID: user.FingerprintTemplateID,
	})
}

// List returns the active local roster for the UI's admin screen.
func (h *UsersHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar usuarios"))
		return
	}

	out := make([]dto.VerifiedUser, 0, len(users))
	for _, u := range users {
		out = append(out, dto.VerifiedUser{
			ID:      u.ID,
			Cedula:  u.Cedula,
			Nombre:  u.Nombre,
			Empresa: u.Empresa,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": len(out)})
}

// Deactivate soft-deletes a local user. Requires the supervisor PIN in the
// X-Supervisor-PIN header since DELETE carries no body.
func (h *UsersHandler) Deactivate(c *gin.Context) {
	if !h.checkPIN(c, c.GetHeader("X-Supervisor-PIN")) {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	if err := h.users.Deactivate(c.Request.Context(), uint(id)); err != nil {
		c.JSON(http.StatusNotFound, apierror.New("Usuario no encontrado"))
		return
	}
	c.Status(http.StatusNoContent)
}
