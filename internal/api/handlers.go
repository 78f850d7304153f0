package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/validation"
	"lead-wizard/internal/lead/session"
	"lead-wizard/internal/lead/wizard"
	"lead-wizard/internal/lead/zipcode"
	"lead-wizard/internal/models"
)

type Handler struct {
	sessions SessionService
	zipcodes ZipcodeService
	logger   logger.Logger
	lang     string
}

// CreateSession opens a fresh session, or resumes an existing lead when the
// body names one.
func (h *Handler) CreateSession(c *gin.Context) {
	var req session.ResumeInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, "invalid request body")
			return
		}
	}
	if req.Language == "" {
		req.Language = c.Query("lang")
	}

	var (
		rec session.Record
		err error
	)
	if req.LeadID != "" || req.Metadata != nil {
		rec, err = h.sessions.Resume(c.Request.Context(), req)
	} else {
		rec, err = h.sessions.Create(c.Request.Context(), req.Language)
	}
	if err != nil {
		RespondError(c, err, h.language(req.Language), nil)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetSession(c *gin.Context) {
	rec, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err, h.language(c.Query("lang")), nil)
		return
	}
	RespondOK(c, rec)
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err, h.language(c.Query("lang")), nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.sessions.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err, h.language(c.Query("lang")), nil)
		return
	}
	RespondOK(c, gin.H{"events": events})
}

func (h *Handler) SelectHouseholdType(c *gin.Context) {
	var req struct {
		HouseholdType string `json:"householdType"`
	}
	if !bind(c, &req) {
		return
	}
	h.do(c, "selectHouseholdType", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SelectHouseholdType(ctx, models.HouseholdType(req.HouseholdType))
	})
}

func (h *Handler) SubmitHouseholdBasics(c *gin.Context) {
	var req wizard.BasicsInput
	if !bind(c, &req) {
		return
	}
	h.do(c, "submitHouseholdBasics", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SubmitHouseholdBasics(ctx, req)
	})
}

func (h *Handler) SubmitPrimary(c *gin.Context) {
	var req models.PrimaryApplicant
	if !bind(c, &req) {
		return
	}
	h.do(c, "submitPrimary", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SubmitPrimary(ctx, req)
	})
}

func (h *Handler) SubmitMembers(c *gin.Context) {
	var req struct {
		Members []models.HouseholdMember `json:"members"`
	}
	if !bind(c, &req) {
		return
	}
	h.do(c, "submitMembers", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SubmitMembers(ctx, req.Members)
	})
}

// ListPlans refreshes the listing held by the session; the plans come back
// inside the snapshot.
func (h *Handler) ListPlans(c *gin.Context) {
	lang := c.Query("lang")
	h.do(c, "listPlans", func(ctx context.Context, w *wizard.Wizard) error {
		_, err := w.ListPlans(ctx, lang)
		return err
	})
}

func (h *Handler) SelectPlan(c *gin.Context) {
	var req struct {
		PlanID string `json:"planId"`
	}
	if !bind(c, &req) {
		return
	}
	h.do(c, "selectPlan", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SelectPlan(ctx, req.PlanID)
	})
}

func (h *Handler) ConfirmPlan(c *gin.Context) {
	var req struct {
		Language string `json:"language"`
	}
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	if req.Language == "" {
		req.Language = c.Query("lang")
	}
	h.do(c, "confirmPlan", func(ctx context.Context, w *wizard.Wizard) error {
		return w.ConfirmPlan(ctx, req.Language)
	})
}

func (h *Handler) CheckConsent(c *gin.Context) {
	h.do(c, "checkConsent", func(ctx context.Context, w *wizard.Wizard) error {
		return w.CheckConsent(ctx, wizard.Foreground)
	})
}

func (h *Handler) OpenConsent(c *gin.Context) {
	h.do(c, "openConsent", func(ctx context.Context, w *wizard.Wizard) error {
		return w.OpenConsent(ctx)
	})
}

func (h *Handler) Back(c *gin.Context) {
	h.do(c, "back", func(ctx context.Context, w *wizard.Wizard) error {
		return w.Back(ctx)
	})
}

// ZipcodeByZip resolves a zip with its county options.
func (h *Handler) ZipcodeByZip(c *gin.Context) {
	lang := h.language(c.Query("lang"))
	rec, err := h.zipcodes.ByZip(c.Request.Context(), c.Param("zip"))
	if err != nil {
		RespondError(c, err, lang, nil)
		return
	}
	if rec == nil {
		fields := []commonerrors.FieldError{{Field: "zipCode", Message: validation.Message(lang, validation.MsgZipCode)}}
		c.JSON(http.StatusNotFound, ErrorEnvelope{Error: APIError{
			Code:    string(commonerrors.ErrCodeValidationFailed),
			Message: fields[0].Message,
			Fields:  fields,
		}})
		return
	}
	RespondOK(c, gin.H{"zipcode": rec, "counties": zipcode.CountyOptions(*rec)})
}

func (h *Handler) ZipcodeSuggestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	suggestions, err := h.zipcodes.Suggestions(c.Request.Context(), c.Query("prefix"), limit)
	if err != nil {
		RespondError(c, err, h.language(c.Query("lang")), nil)
		return
	}
	RespondOK(c, gin.H{"suggestions": suggestions})
}

// do runs a wizard action and answers with the resulting snapshot. Failed
// actions still carry the session so the client can render the error state.
func (h *Handler) do(c *gin.Context, name string, action session.Action) {
	rec, err := h.sessions.Do(c.Request.Context(), c.Param("id"), name, action)
	if err != nil {
		if rec.Session.ID == "" {
			RespondError(c, err, h.language(c.Query("lang")), nil)
			return
		}
		h.logger.Debug("Wizard action failed", map[string]interface{}{
			"sessionId": rec.Session.ID,
			"action":    name,
			"error":     err,
		})
		RespondError(c, err, h.language(rec.Session.Language), &rec)
		return
	}
	RespondOK(c, rec)
}

func (h *Handler) language(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "es" || lang == "en" {
		return lang
	}
	return h.lang
}

func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondBadRequest(c, "invalid request body")
		return false
	}
	return true
}
