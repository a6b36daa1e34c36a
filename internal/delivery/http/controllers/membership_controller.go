package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"reconned/internal/delivery/http/helpers"
	"reconned/internal/domain"
)

// MembershipSuccessResponse is the success response envelope for promote and demote (200).
type MembershipSuccessResponse struct {
	Data  *domain.ClubMembership `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// MemberListData is the data payload of GET /clubs/{clubID}/members.
type MemberListData struct {
	Items      []*domain.ClubMember   `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListMembersSuccessResponse is the success response envelope for GET /clubs/{clubID}/members (200).
type ListMembersSuccessResponse struct {
	Data  MemberListData    `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type MembershipController struct {
	Logger  *slog.Logger
	Service domain.MembershipService
}

func NewMembershipController(logger *slog.Logger, svc domain.MembershipService) *MembershipController {
	return &MembershipController{
		Logger:  logger,
		Service: svc,
	}
}

// ListMembers godoc
// @Summary List club members
// @Description Paginated list of the club's members with their roles. Visible to members of the club.
// @Tags members
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListMembersSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/members [get]
func (c *MembershipController) ListMembers(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	members, total, err := c.Service.ListMembers(r.Context(), clubID, actor, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if members == nil {
		members = []*domain.ClubMember{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewPaginatedData(members, params, total))
}

// RemoveMember godoc
// @Summary Remove a member from a club
// @Description Managers remove regular members; only the owner removes managers. The owner cannot be removed.
// @Tags members
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param membershipID path string true "Membership ID (UUID)"
// @Success 204 "Member removed"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/members/{membershipID} [delete]
func (c *MembershipController) RemoveMember(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	membershipID, ok := pathUUID(w, r, "membershipID")
	if !ok {
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := c.Service.RemoveMember(r.Context(), clubID, membershipID, actor); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PromoteMember godoc
// @Summary Promote a member to manager
// @Tags members
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param membershipID path string true "Membership ID (UUID)"
// @Success 200 {object} controllers.MembershipSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (owner only)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/members/{membershipID}/promote [post]
func (c *MembershipController) PromoteMember(w http.ResponseWriter, r *http.Request) {
	c.changeRole(w, r, c.Service.Promote)
}

// DemoteMember godoc
// @Summary Demote a manager to regular member
// @Tags members
// @Produce json
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Param membershipID path string true "Membership ID (UUID)"
// @Success 200 {object} controllers.MembershipSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (owner only)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/members/{membershipID}/demote [post]
func (c *MembershipController) DemoteMember(w http.ResponseWriter, r *http.Request) {
	c.changeRole(w, r, c.Service.Demote)
}

func (c *MembershipController) changeRole(w http.ResponseWriter, r *http.Request, change func(context.Context, string, string, *domain.Identity) (*domain.ClubMembership, error)) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	membershipID, ok := pathUUID(w, r, "membershipID")
	if !ok {
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	m, err := change(r.Context(), clubID, membershipID, actor)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, m)
}

// LeaveClub godoc
// @Summary Leave a club
// @Description Removes the caller's own membership. The owner cannot leave their club.
// @Tags members
// @Security BearerAuth
// @Param clubID path string true "Club ID (UUID)"
// @Success 204 "Left the club"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (owner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found (not a member)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /clubs/{clubID}/leave [post]
func (c *MembershipController) LeaveClub(w http.ResponseWriter, r *http.Request) {
	clubID, ok := pathUUID(w, r, "clubID")
	if !ok {
		return
	}
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := c.Service.LeaveClub(r.Context(), clubID, caller); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
