// Package backend wraps the public lead GraphQL mutations.
package backend

import (
	"context"
	"errors"
	"time"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/graphql"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/metrics"
)

type Service struct {
	client graphql.Client
	token  string
	logger logger.Logger
}

func NewService(client graphql.Client, token string, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{client: client, token: token, logger: log}
}

// StartLead creates the lead. A rejection returns the decoded result together
// with a BACKEND_REJECTED error.
func (s *Service) StartLead(ctx context.Context, in StartLeadInput) (*Result, error) {
	vars := map[string]interface{}{
		"token":     s.token,
		"household": in.Household,
		"primary": map[string]interface{}{
			"firstName":    in.Primary.FirstName,
			"lastName":     in.Primary.LastName,
			"gender":       in.Primary.Gender,
			"birthDate":    in.Primary.BirthDate,
			"phone":        in.Primary.Phone,
			"email":        in.Primary.Email,
			"acceptsTerms": in.Primary.AcceptsTerms,
		},
		"context": in.Context.variables(),
	}
	var out struct {
		PublicStartLead *Result `json:"publicStartLead"`
	}
	if err := s.call(ctx, OpStartLead, startLeadMutation, vars, &out); err != nil {
		return nil, err
	}
	return s.finish(OpStartLead, out.PublicStartLead)
}

func (s *Service) UpdateHousehold(ctx context.Context, in UpdateHouseholdInput) (*Result, error) {
	vars := map[string]interface{}{
		"token":      s.token,
		"leadId":     in.LeadID,
		"members":    in.Members,
		"wizardStep": string(in.WizardStep),
	}
	var out struct {
		PublicUpdateHousehold *Result `json:"publicUpdateHousehold"`
	}
	if err := s.call(ctx, OpUpdateHousehold, updateHouseholdMutation, vars, &out); err != nil {
		return nil, err
	}
	return s.finish(OpUpdateHousehold, out.PublicUpdateHousehold)
}

func (s *Service) ConfirmPlan(ctx context.Context, in ConfirmPlanInput) (*Result, error) {
	vars := map[string]interface{}{
		"token":           s.token,
		"leadId":          in.LeadID,
		"planSelection":   in.Selection,
		"planResults":     in.Results,
		"signatureFormId": in.SignatureFormID,
		"agentId":         in.AgentID,
		"sendEmail":       in.SendEmail,
		"sendSms":         in.SendSMS,
		"getSigningLink":  in.GetSigningLink,
	}
	var out struct {
		PublicConfirmPlan *Result `json:"publicConfirmPlan"`
	}
	if err := s.call(ctx, OpConfirmPlan, confirmPlanMutation, vars, &out); err != nil {
		return nil, err
	}
	return s.finish(OpConfirmPlan, out.PublicConfirmPlan)
}

func (s *Service) CheckConsent(ctx context.Context, leadID string) (*Result, error) {
	vars := map[string]interface{}{
		"token":  s.token,
		"leadId": leadID,
	}
	var out struct {
		PublicCheckConsent *Result `json:"publicCheckConsent"`
	}
	if err := s.call(ctx, OpCheckConsent, checkConsentMutation, vars, &out); err != nil {
		return nil, err
	}
	return s.finish(OpCheckConsent, out.PublicCheckConsent)
}

func (s *Service) call(ctx context.Context, op, document string, vars map[string]interface{}, out interface{}) error {
	start := time.Now()
	err := s.client.Mutate(ctx, document, vars, out)
	metrics.BackendCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	metrics.BackendCalls.WithLabelValues(op, "transport").Inc()
	// canceled by the caller
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("Lead backend call canceled", map[string]interface{}{
			"operation": op,
		})
	} else {
		s.logger.Error("Lead backend call failed", map[string]interface{}{
			"operation": op,
			"error":     err,
		})
	}
	return commonerrors.NewTransportError(op, err)
}

func (s *Service) finish(op string, res *Result) (*Result, error) {
	if res == nil {
		metrics.BackendCalls.WithLabelValues(op, "rejected").Inc()
		s.logger.Warn("Lead backend returned no payload", map[string]interface{}{
			"operation": op,
		})
		return &Result{}, commonerrors.NewBackendRejectedError(op, nil)
	}
	if !res.Success {
		metrics.BackendCalls.WithLabelValues(op, "rejected").Inc()
		s.logger.Warn("Lead backend rejected call", map[string]interface{}{
			"operation": op,
			"message":   res.FirstErrorMessage(),
			"errors":    len(res.Errors),
		})
		return res, commonerrors.NewBackendRejectedError(op, res.Errors)
	}
	metrics.BackendCalls.WithLabelValues(op, "success").Inc()
	return res, nil
}
