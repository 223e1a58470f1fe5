package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reviewly/agencyhub-api/internal/authz"
	"github.com/reviewly/agencyhub-api/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(auth *handlers.AuthHandler, invite *handlers.InviteHandler, jwtSecret string) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Public invite preview, used by the landing page before sign-in
	router.HandleFunc("/api/invites/{token}", invite.PreviewInvite).Methods(http.MethodGet)

	// Authenticated endpoints
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(authz.JWT(jwtSecret))
	protected.HandleFunc("/password", auth.SetPassword).Methods(http.MethodPost)
	protected.HandleFunc("/invites", invite.CreateInvite).Methods(http.MethodPost)
	protected.HandleFunc("/invites/{token}/accept", invite.AcceptInvite).Methods(http.MethodPost)
	protected.HandleFunc("/agencies/{agencyID}/invites", invite.ListAgencyInvites).Methods(http.MethodGet)

	return router
}
