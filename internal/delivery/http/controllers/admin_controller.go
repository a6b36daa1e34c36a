package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"reconned/internal/delivery/http/helpers"
	"reconned/internal/domain"
)

// CleanupSuccessResponse is the success response envelope for GET /admin/cleanup (200).
type CleanupSuccessResponse struct {
	Data  *domain.CleanupReport `json:"data"`
	Error *helpers.APIError     `json:"error"`
}

// ReminderSuccessResponse is the success response envelope for GET /admin/membership-reminder (200).
type ReminderSuccessResponse struct {
	Data  *domain.ReminderReport `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// EmailVerifiedRequest is the identity provider's callback body for POST /hooks/email-verified.
type EmailVerifiedRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Validate implements Validator.
func (e EmailVerifiedRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(e.UserID) == "" {
		errs = append(errs, "user_id is required")
	}
	if !emailRegex.MatchString(strings.TrimSpace(e.Email)) {
		errs = append(errs, "email must be a valid email address")
	}
	return errs
}

// EmailVerifiedResponse is the data payload of POST /hooks/email-verified.
type EmailVerifiedResponse struct {
	Accepted int `json:"accepted"`
}

// EmailVerifiedSuccessResponse is the success response envelope for POST /hooks/email-verified (200).
type EmailVerifiedSuccessResponse struct {
	Data  EmailVerifiedResponse `json:"data"`
	Error *helpers.APIError     `json:"error"`
}

// AdminController serves the scheduler jobs and identity provider callbacks.
// Every route is guarded by the shared bearer secret.
type AdminController struct {
	Logger      *slog.Logger
	Maintenance domain.MaintenanceService
	Invitations domain.InvitationService
}

func NewAdminController(logger *slog.Logger, maintenance domain.MaintenanceService, invitations domain.InvitationService) *AdminController {
	return &AdminController{
		Logger:      logger,
		Maintenance: maintenance,
		Invitations: invitations,
	}
}

// Cleanup godoc
// @Summary Run the expiration sweeper
// @Description Deletes abandoned unverified accounts and their images, expires and prunes invitations and off-platform invites, lifts elapsed bans and prunes old audit logs. Steps run independently; failed steps are listed in data.errors.
// @Tags admin
// @Produce json
// @Security CronSecret
// @Success 200 {object} controllers.CleanupSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/cleanup [get]
func (c *AdminController) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := c.Maintenance.Cleanup(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.Logger.InfoContext(r.Context(), "cleanup finished",
		"deleted_users", report.DeletedUnverifiedUsers,
		"expired_invitations", report.ExpiredInvitations,
		"failed_steps", len(report.Errors),
	)
	helpers.WriteJSONSuccess(w, http.StatusOK, report)
}

// MembershipReminder godoc
// @Summary Send membership expiry reminders
// @Description Emails members whose membership ends within the next 7 days. Each membership is reminded once.
// @Tags admin
// @Produce json
// @Security CronSecret
// @Success 200 {object} controllers.ReminderSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/membership-reminder [get]
func (c *AdminController) MembershipReminder(w http.ResponseWriter, r *http.Request) {
	report, err := c.Maintenance.SendMembershipReminders(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, report)
}

// EmailVerified godoc
// @Summary Identity provider callback after an email was verified
// @Description Accepts every PENDING invitation addressed to the verified email on behalf of the user.
// @Tags admin
// @Accept json
// @Produce json
// @Security CronSecret
// @Param body body EmailVerifiedRequest true "Verified account"
// @Success 200 {object} controllers.EmailVerifiedSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /hooks/email-verified [post]
func (c *AdminController) EmailVerified(w http.ResponseWriter, r *http.Request) {
	var req EmailVerifiedRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	accepted, err := c.Invitations.AcceptForVerifiedEmail(r.Context(), req.UserID, req.Email)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, EmailVerifiedResponse{Accepted: accepted})
}
