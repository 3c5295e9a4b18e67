package handler

import (
	"net/http"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/apierror"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/dto"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/imaging"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/service"

	"github.com/gin-gonic/gin"
)

type VerifyHandler struct{ svc service.VerificationService }

func NewVerifyHandler(svc service.VerificationService) *VerifyHandler {
	return &VerifyHandler{svc: svc}
}

// Verify runs a single verification attempt with the requested method.
// The outcome is always 200 with a normalized body; the UI decides how to
// render failures.
func (h *VerifyHandler) Verify(c *gin.Context) {
	req, ok := h.buildRequest(c)
	if !ok {
		return
	}
	out := h.svc.Verify(c.Request.Context(), *req)
	c.JSON(http.StatusOK, toVerifyResponse(out))
}

// VerifyWithFallback runs the requested method and, on failure, walks the
// fallback chain for that method.
func (h *VerifyHandler) VerifyWithFallback(c *gin.Context) {
	req, ok := h.buildRequest(c)
	if !ok {
		return
	}
	out := h.svc.VerifyWithFallback(c.Request.Context(), *req)
	c.JSON(http.StatusOK, toVerifyResponse(out))
}

func (h *VerifyHandler) buildRequest(c *gin.Context) (*service.VerificationRequest, bool) {
	var body dto.VerifyRequest
	if !bindAndValidate(c, &body) {
		return nil, false
	}

	image := body.Image
	if len(image) == 0 && body.Frame != nil {
		encoded, err := imaging.EncodeJPEG(imaging.Frame{
			Width:  body.Frame.Width,
			Height: body.Frame.Height,
			Pixels: body.Frame.Pixels,
		}, 0)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("Frame invalido: "+err.Error()))
			return nil, false
		}
		image = encoded
	}

	return &service.VerificationRequest{
		Method:     body.Method,
		Image:      image,
		Cedula:     body.Cedula,
		Lat:        body.Lat,
		Lng:        body.Lng,
		ForcedType: body.ForcedType,
	}, true
}

func toVerifyResponse(out *service.VerificationOutcome) dto.VerifyResponse {
	resp := dto.VerifyResponse{
		Success:           out.Success,
		Verified:          out.Verified,
		Confidence:        out.Confidence,
		MethodUsed:        out.MethodUsed,
		VerificationType:  out.VerificationType,
		RecordID:          out.RecordID,
		ErrorMessage:      out.ErrorMessage,
		FallbackAvailable: out.FallbackAvailable,
		Timestamp:         out.Timestamp,
	}
	if out.User != nil {
		resp.User = &dto.VerifiedUser{
			ID:      out.User.ID,
			Cedula:  out.User.Cedula,
			Nombre:  out.User.Nombre,
			Empresa: out.User.Empresa,
		}
	}
	return resp
}
