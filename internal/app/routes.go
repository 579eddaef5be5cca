package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Recurring expenses
	r.HandleFunc("/api/recurring", deps.ObligationHandler.ListExpenses).Methods("GET")
	r.HandleFunc("/api/recurring", deps.ObligationHandler.CreateExpense).Methods("POST")
	r.HandleFunc("/api/recurring/{uid}", deps.ObligationHandler.GetExpense).Methods("GET")
	r.HandleFunc("/api/recurring/{uid}", deps.ObligationHandler.UpdateExpense).Methods("PUT")
	r.HandleFunc("/api/recurring/{uid}", deps.ObligationHandler.DeleteExpense).Methods("DELETE")

	// Categories
	r.HandleFunc("/api/category", deps.ObligationHandler.ListCategories).Methods("GET")
	r.HandleFunc("/api/category", deps.ObligationHandler.CreateCategory).Methods("POST")

	// Upcoming payments
	r.HandleFunc("/api/upcoming", deps.UpcomingHandler.GetUpcoming).Methods("GET")
	r.HandleFunc("/api/upcoming/export/google", deps.GoogleHandler.ExportUpcoming).Methods("POST")

	// User management
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user/current", deps.UserHandler.UpdateUser).Methods("PUT")
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")

	// Google integration
	r.HandleFunc("/api/integrations/google/auth/login", deps.GoogleAuth.OAuthLogin).Methods("GET")
	r.HandleFunc("/api/integrations/google/auth/logout", deps.GoogleAuth.OAuthLogout).Methods("DELETE")
	r.HandleFunc("/api/integrations/google/auth/callback", deps.GoogleAuth.OAuthCallback).Methods("GET")
	r.HandleFunc("/api/integrations/google/calendars", deps.GoogleHandler.ListCalendars).Methods("GET")
}
