// Package api serves the JSON REST API and the realtime event stream.
package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/inflight"
	"github.com/erazemk/uniforme/internal/model"
)

// NewRouter creates the API router with all endpoints registered. Mutations
// are published on bus.
func NewRouter(db *sql.DB, jwtSecret string, bus *events.Bus) http.Handler {
	return newRouter(db, jwtSecret, bus, time.Now)
}

func newRouter(db *sql.DB, jwtSecret string, bus *events.Bus, now func() time.Time) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, Now: now}
	usersHandler := &UsersHandler{DB: db}
	studentsHandler := &StudentsHandler{DB: db, Bus: bus}
	itemsHandler := &ItemsHandler{DB: db, Bus: bus}
	inventoryHandler := &InventoryHandler{DB: db, Bus: bus}
	ordersHandler := &OrdersHandler{DB: db, Bus: bus, Guard: &inflight.Guard{}, Now: now}
	settingsHandler := &SettingsHandler{DB: db, Bus: bus}
	eventsHandler := &EventsHandler{Bus: bus}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireCustodian := RequireRole(model.RoleCustodian)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/auth/max-quantities", authMW(http.HandlerFunc(authHandler.MaxQuantities)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Students: read (custodian+), write (admin).
	mux.Handle("GET /api/students", authMW(requireCustodian(http.HandlerFunc(studentsHandler.List))))
	mux.Handle("POST /api/students", authMW(requireAdmin(http.HandlerFunc(studentsHandler.Create))))
	mux.Handle("GET /api/students/{id}", authMW(requireCustodian(http.HandlerFunc(studentsHandler.Get))))
	mux.Handle("PUT /api/students/{id}", authMW(requireAdmin(http.HandlerFunc(studentsHandler.Update))))
	mux.Handle("GET /api/students/{id}/permissions", authMW(requireCustodian(http.HandlerFunc(studentsHandler.GetPermissions))))
	mux.Handle("PUT /api/students/{id}/permissions", authMW(requireAdmin(http.HandlerFunc(studentsHandler.SetPermissions))))
	mux.Handle("POST /api/students/{id}/unblock", authMW(requireAdmin(http.HandlerFunc(studentsHandler.Unblock))))

	// Items: read (all roles), write (custodian+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireCustodian(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireCustodian(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireCustodian(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireCustodian(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Inventory (custodian+).
	mux.Handle("POST /api/inventory/adjust", authMW(requireCustodian(http.HandlerFunc(inventoryHandler.Adjust))))

	// Orders: students see and place their own, staff see all.
	mux.Handle("GET /api/orders", authMW(http.HandlerFunc(ordersHandler.List)))
	mux.Handle("POST /api/orders", authMW(http.HandlerFunc(ordersHandler.Create)))
	mux.Handle("GET /api/orders/{id}", authMW(http.HandlerFunc(ordersHandler.Get)))
	mux.Handle("PUT /api/orders/{id}/status", authMW(requireCustodian(http.HandlerFunc(ordersHandler.UpdateStatus))))
	mux.Handle("POST /api/orders/{id}/cancel", authMW(http.HandlerFunc(ordersHandler.Cancel)))
	mux.Handle("POST /api/orders/{id}/claim", authMW(requireCustodian(http.HandlerFunc(ordersHandler.Claim))))
	mux.Handle("GET /api/orders/{id}/receipt", authMW(http.HandlerFunc(ordersHandler.Receipt)))

	// Settings (admin).
	mux.Handle("GET /api/settings/limits", authMW(requireAdmin(http.HandlerFunc(settingsHandler.GetLimits))))
	mux.Handle("PUT /api/settings/limits", authMW(requireAdmin(http.HandlerFunc(settingsHandler.SetLimits))))

	// Realtime events.
	mux.Handle("GET /api/events", authMW(http.HandlerFunc(eventsHandler.Stream)))

	return mux
}
