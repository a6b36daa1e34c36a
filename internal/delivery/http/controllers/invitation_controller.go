package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"reconned/internal/delivery/http/helpers"
	"reconned/internal/delivery/http/middleware"
	"reconned/internal/domain"
)

// Reasons carried by the invite error page redirect.
const (
	inviteReasonNotFound = "not_found"
	inviteReasonExpired  = "expired"
	inviteReasonUsed     = "used"
	inviteReasonMismatch = "mismatch"
	inviteReasonError    = "error"
)

// CreateInvitationRequest is the request body for POST /clubs/{clubID}/invitations.
type CreateInvitationRequest struct {
	Email string `json:"email"`
}

// Validate implements Validator.
func (c CreateInvitationRequest) Validate() []string {
	var errs []string
	email := strings.TrimSpace(c.Email)
	if email == "" {
		errs = append(errs, "email is required")
	} else if !emailRegex.MatchString(email) {
		errs = append(errs, "email must be a valid email address")
	}
	return errs
}

// DecideInvitationRequest is the request body for POST /clubs/{clubID}/invitations/{invitationID}/decision.
type DecideInvitationRequest struct {
	Decision domain.InvitationDecision `json:"decision"`
}

// Validate implements Validator.
func (d DecideInvitationRequest) Validate() []string {
	if !d.Decision.Valid() {
		return []string{"decision must be accept or reject"}
	}
	return nil
}

// InvitationSuccessResponse is the success response envelope for endpoints returning one invitation.
type InvitationSuccessResponse struct {
	Data  *domain.Invitation `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// InvitationListData is the data payload of GET /clubs/{clubID}/invitations.
type InvitationListData struct {
	Items      []*domain.Invitation   `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListInvitationsSuccessResponse is the success response envelope for GET /clubs/{clubID}/invitations (200).
type ListInvitationsSuccessResponse struct {
	Data  InvitationListData `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

type InvitationController struct {
	Logger  *slog.Logger
	Service domain.InvitationService
	// AppURL is the frontend origin the redemption endpoint redirects to.
	AppURL string
}

func NewInvitationController(logger *slog.Logger, svc domain.InvitationService, appURL string) *InvitationController {
	return &InvitationController{
		Logger:  logger,
		Service: svc,
		AppURL:  strings.TrimSuffix(appURL, "/"),
	}
}

// CreateInvitation godoc
// @Summary Invite an email address to a club
// @Description Creates a PENDING invitation with a fresh 8-character code valid for 30 days and emails the redemption link. Only club managers and the owner can invite.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param body body CreateInvitationRequest true "Invitee email"
// @Success 201 {object} controllers.InvitationSuccessResponse "data contains the created invitation"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (already a member or active invitation exists)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/invitations [post]
func (c *InvitationController) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	var req CreateInvitationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	inv, err := c.Service.CreateInvite(r.Context(), clubID, req.Email, actor)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, inv)
}

// ListInvitations godoc
// @Summary List a club's invitations
// @Description Paginated list of the club's invitations and access requests, newest first. Optionally filtered by status. Managers and the owner only.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param status query string false "PENDING, REQUESTED, ACCEPTED, REJECTED or EXPIRED"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListInvitationsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/invitations [get]
func (c *InvitationController) ListInvitations(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	var status domain.InvitationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := domain.ParseInvitationStatus(strings.ToUpper(s))
		if err != nil {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid status")
			return
		}
		status = parsed
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	items, total, err := c.Service.ListClubInvitations(r.Context(), clubID, status, actor, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if items == nil {
		items = []*domain.Invitation{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewPaginatedData(items, params, total))
}

// RequestAccess godoc
// @Summary Ask to join a club
// @Description Creates a REQUESTED invitation for the caller's email that a club manager later accepts or rejects.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Success 201 {object} controllers.InvitationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/requests [post]
func (c *InvitationController) RequestAccess(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	inv, err := c.Service.RequestAccess(r.Context(), clubID, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, inv)
}

// DecideInvitation godoc
// @Summary Accept or reject an invitation or access request
// @Description Managers resolve an active invitation of their club. Accepting creates the membership; expired invitations are marked EXPIRED and reported as a window violation.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param invitationID path string true "Invitation ID (UUID)"
// @Param body body DecideInvitationRequest true "accept or reject"
// @Success 200 {object} controllers.InvitationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 422 {object} helpers.APIResponse "error.code: window_violation"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/invitations/{invitationID}/decision [post]
func (c *InvitationController) DecideInvitation(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	invitationID, ok := pathUUID(w, r, "invitationID")
	if !ok {
		return
	}
	var req DecideInvitationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	inv, err := c.Service.Decide(r.Context(), clubID, invitationID, req.Decision, actor)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, inv)
}

// DeclineInvitation godoc
// @Summary Decline an invitation
// @Description The invitee declines a PENDING invitation addressed to their email.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param code path string true "Invitation code"
// @Success 200 {object} controllers.InvitationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (different account)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (already used)"
// @Failure 422 {object} helpers.APIResponse "error.code: window_violation (expired)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invite/{code}/decline [post]
func (c *InvitationController) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing code")
		return
	}
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	inv, err := c.Service.Decline(r.Context(), code, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, inv)
}

// RedeemInvitation godoc
// @Summary Redeem an invitation code
// @Description Browser entry point of an invitation link. Always answers with a redirect to the frontend: the club dashboard on success, login or registration when the caller is anonymous, or the invite error page with a reason (not_found, expired, used, mismatch).
// @Tags invitations
// @Param code path string true "Invitation code"
// @Success 302 "Redirect to the frontend"
// @Router /invite/{code} [get]
func (c *InvitationController) RedeemInvitation(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	var caller *domain.Identity
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		caller = identity
	}
	result, err := c.Service.Redeem(r.Context(), code, caller)
	if err != nil {
		reason := redeemFailureReason(err)
		if reason == inviteReasonError {
			c.Logger.ErrorContext(r.Context(), "request failed", "path", "/invite/{code}", "method", r.Method, "err", err)
		}
		c.redirect(w, r, "/invite/error", url.Values{"reason": {reason}})
		return
	}
	back := "/invite/" + url.PathEscape(code)
	switch result.Outcome {
	case domain.RedeemAccepted:
		c.redirect(w, r, "/dashboard/"+url.PathEscape(result.ClubID)+"/club", nil)
	case domain.RedeemNeedsLogin:
		c.redirect(w, r, "/login", url.Values{"redirectTo": {back}})
	case domain.RedeemNeedsRegistration:
		c.redirect(w, r, "/register", url.Values{"redirectTo": {back}, "email": {result.Email}})
	default:
		c.redirect(w, r, "/invite/error", url.Values{"reason": {inviteReasonError}})
	}
}

func (c *InvitationController) redirect(w http.ResponseWriter, r *http.Request, path string, query url.Values) {
	target := c.AppURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// redeemFailureReason maps a redemption error to the reason shown on the invite error page.
func redeemFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInviteExpired):
		return inviteReasonExpired
	case errors.Is(err, domain.ErrAccountMismatch):
		return inviteReasonMismatch
	case errors.Is(err, domain.ErrNotFound):
		return inviteReasonNotFound
	case errors.Is(err, domain.ErrConflict):
		return inviteReasonUsed
	default:
		return inviteReasonError
	}
}
