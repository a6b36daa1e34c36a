package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"reconned/internal/delivery/http/controllers"
	"reconned/internal/delivery/http/middleware"
	"reconned/internal/domain"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Invitations   *controllers.InvitationController
	Memberships   *controllers.MembershipController
	Registrations *controllers.RegistrationController
	Admin         *controllers.AdminController
}

// RouterConfig holds the authentication and CORS settings of the router.
type RouterConfig struct {
	Verifier       domain.TokenVerifier
	SessionCookie  string
	CronSecret     string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter initializes the HTTP router with all application routes and
// wraps it with request metadata, access logging and CORS.
func NewRouter(c Controllers, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.RequireAuth(cfg.Verifier, cfg.SessionCookie, cfg.Logger)
	optionalAuth := middleware.OptionalAuth(cfg.Verifier, cfg.SessionCookie, cfg.Logger)
	secret := middleware.RequireBearerSecret(cfg.CronSecret, cfg.Logger)

	// Invitations
	mux.HandleFunc("POST /clubs/{clubID}/invitations", auth(c.Invitations.CreateInvitation))
	mux.HandleFunc("GET /clubs/{clubID}/invitations", auth(c.Invitations.ListInvitations))
	mux.HandleFunc("POST /clubs/{clubID}/invitations/{invitationID}/decision", auth(c.Invitations.DecideInvitation))
	mux.HandleFunc("POST /clubs/{clubID}/requests", auth(c.Invitations.RequestAccess))
	mux.HandleFunc("GET /invite/{code}", optionalAuth(c.Invitations.RedeemInvitation))
	mux.HandleFunc("POST /invite/{code}/decline", auth(c.Invitations.DeclineInvitation))

	// Memberships
	mux.HandleFunc("GET /clubs/{clubID}/members", auth(c.Memberships.ListMembers))
	mux.HandleFunc("DELETE /clubs/{clubID}/members/{membershipID}", auth(c.Memberships.RemoveMember))
	mux.HandleFunc("POST /clubs/{clubID}/members/{membershipID}/promote", auth(c.Memberships.PromoteMember))
	mux.HandleFunc("POST /clubs/{clubID}/members/{membershipID}/demote", auth(c.Memberships.DemoteMember))
	mux.HandleFunc("POST /clubs/{clubID}/leave", auth(c.Memberships.LeaveClub))

	// Registrations
	mux.HandleFunc("PUT /events/{eventID}/registration", auth(c.Registrations.SubmitRegistration))
	mux.HandleFunc("GET /events/{eventID}/registration", auth(c.Registrations.GetMyRegistration))
	mux.HandleFunc("DELETE /events/{eventID}/registration", auth(c.Registrations.DeleteRegistration))
	mux.HandleFunc("GET /events/{eventID}/window", c.Registrations.GetEventWindow)
	mux.HandleFunc("PATCH /registrations/{registrationID}/attendance", auth(c.Registrations.ToggleAttendance))

	// Scheduler and identity provider callbacks
	mux.HandleFunc("GET /admin/cleanup", secret(c.Admin.Cleanup))
	mux.HandleFunc("GET /admin/membership-reminder", secret(c.Admin.MembershipReminder))
	mux.HandleFunc("POST /hooks/email-verified", secret(c.Admin.EmailVerified))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	var handler http.Handler = mux
	handler = middleware.RequestMeta(handler)
	handler = middleware.LoggingMiddleware(cfg.Logger, handler)
	handler = middleware.CORS(cfg.AllowedOrigins, handler)
	return handler
}
