package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/svirmi/gift-ledger/internal/role"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", app.healthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /auth/login", app.login)

	mux.HandleFunc("GET /me", app.requireAuth(app.me))
	mux.HandleFunc("GET /dashboard", app.requireAuth(app.dashboard))

	mux.HandleFunc("GET /users", app.requireAuth(app.listUsers))
	mux.HandleFunc("GET /users/{userId}", app.requireAuth(app.getUser))
	mux.HandleFunc("POST /admin/users", app.requireRole(role.Admin, app.createUser))

	mux.HandleFunc("GET /gifts", app.requireAuth(app.listGifts))

	mux.HandleFunc("GET /transactions", app.requireAuth(app.listTransactions))
	mux.HandleFunc("GET /transactions/{id}", app.requireAuth(app.getTransaction))
	mux.HandleFunc("POST /transactions", app.requireAuth(app.createTransaction))
	mux.HandleFunc("POST /transactions/{id}/accept", app.requireAuth(app.acceptTransaction))
	mux.HandleFunc("POST /transactions/{id}/decline", app.requireAuth(app.declineTransaction))

	mux.HandleFunc("PUT /data", app.requireAuth(app.updateData))
	mux.HandleFunc("DELETE /data", app.requireAuth(app.deleteData))

	mux.HandleFunc("GET /reports/obligations", app.requireRole(role.Manager, app.obligations))

	return app.logRequest(mux)
}
