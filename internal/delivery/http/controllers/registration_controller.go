package controllers

import (
	"log/slog"
	"net/http"

	"reconned/internal/delivery/http/helpers"
	"reconned/internal/domain"
)

// SubmitRegistrationRequest is the request body for PUT /events/{eventID}/registration.
// Invitee lists replace the stored ones wholesale.
type SubmitRegistrationRequest struct {
	Type            domain.RegistrationType  `json:"type"`
	PaymentMethod   domain.PaymentMethod     `json:"payment_method"`
	RulesAccepted   bool                     `json:"rules_accepted"`
	InvitedUserIDs  []string                 `json:"invited_user_ids"`
	InvitedNotOnApp []domain.NotOnAppInvitee `json:"invited_users_not_on_app"`
}

// Validate implements Validator. Rules acceptance and list normalization are
// checked by the registration engine.
func (s SubmitRegistrationRequest) Validate() []string {
	var errs []string
	if s.Type == "" {
		errs = append(errs, "type is required")
	}
	if s.PaymentMethod == "" {
		errs = append(errs, "payment_method is required")
	}
	for _, inv := range s.InvitedNotOnApp {
		if inv.Email != "" && !emailRegex.MatchString(inv.Email) {
			errs = append(errs, "invited_users_not_on_app contains an invalid email")
			break
		}
	}
	return errs
}

func (s SubmitRegistrationRequest) input() *domain.RegistrationInput {
	return &domain.RegistrationInput{
		Type:            s.Type,
		PaymentMethod:   s.PaymentMethod,
		RulesAccepted:   s.RulesAccepted,
		InvitedUserIDs:  s.InvitedUserIDs,
		InvitedNotOnApp: s.InvitedNotOnApp,
	}
}

// ToggleAttendanceRequest is the request body for PATCH /registrations/{registrationID}/attendance.
type ToggleAttendanceRequest struct {
	Attended *bool `json:"attended"`
}

// Validate implements Validator.
func (t ToggleAttendanceRequest) Validate() []string {
	if t.Attended == nil {
		return []string{"attended is required"}
	}
	return nil
}

// RegistrationSuccessResponse is the success response envelope for endpoints returning a registration.
type RegistrationSuccessResponse struct {
	Data  *domain.EventRegistration `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// EventWindowSuccessResponse is the success response envelope for GET /events/{eventID}/window (200).
type EventWindowSuccessResponse struct {
	Data  *domain.EventWindowStatus `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// SubmitRegistration godoc
// @Summary Create or update the caller's registration for an event
// @Description Allowed only while registrations are open. Returns 201 when the registration was created and 200 when an existing one was updated. Off-platform co-participants receive an email with their token.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body SubmitRegistrationRequest true "Registration"
// @Success 200 {object} controllers.RegistrationSuccessResponse "Registration updated"
// @Success 201 {object} controllers.RegistrationSuccessResponse "Registration created"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (including rules not accepted)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (private event)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: window_violation, error.boundary holds the opening or closing instant"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registration [put]
func (c *RegistrationController) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	var req SubmitRegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	reg, created, err := c.Service.Submit(r.Context(), eventID, caller, req.input())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	helpers.WriteJSONSuccess(w, status, reg)
}

// GetMyRegistration godoc
// @Summary Get the caller's registration for an event
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registration [get]
func (c *RegistrationController) GetMyRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	reg, err := c.Service.GetMine(r.Context(), eventID, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// DeleteRegistration godoc
// @Summary Withdraw the caller's registration
// @Description Allowed only while registrations are open. Invitee lists are removed with the registration.
// @Tags registrations
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 204 "Registration deleted"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: window_violation"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registration [delete]
func (c *RegistrationController) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := c.Service.Delete(r.Context(), eventID, caller); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEventWindow godoc
// @Summary Get the current registration window of an event
// @Description One of upcoming, registration, attendance or ended, with the boundary instants.
// @Tags registrations
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventWindowSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/window [get]
func (c *RegistrationController) GetEventWindow(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	status, err := c.Service.EventWindow(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, status)
}

// ToggleAttendance godoc
// @Summary Record whether a registrant attended
// @Description Club managers mark attendance between registration close and event end.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body ToggleAttendanceRequest true "Attendance flag"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: window_violation"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/attendance [patch]
func (c *RegistrationController) ToggleAttendance(w http.ResponseWriter, r *http.Request) {
	registrationID, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	var req ToggleAttendanceRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	reg, err := c.Service.ToggleAttendance(r.Context(), registrationID, *req.Attended, actor)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}
