package api

import (
	"net/http"

	"github.com/xaenox/astro-bot/internal/models"
	"github.com/xaenox/astro-bot/internal/render"
)

type reportResponse struct {
	Report string `json:"report"`
	Source string `json:"source"`
	HTML   string `json:"html"`
}

// CreateReport answers an intake form with a one-shot planetary report.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var form models.IntakeForm
	if err := decodeJSON(w, r, &form, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	reply, err := h.svc.Report(r.Context(), form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, reportResponse{
		Report: reply.Text,
		Source: reply.Source,
		HTML:   render.HTML(render.Parse(reply.Text)),
	})
}
