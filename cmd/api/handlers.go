package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/helpers"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/service"
)

const (
	collectionTransactions = "transactions"
	collectionUsers        = "users"
	collectionGifts        = "gifts"

	actionBatchUpdateStatus = "batchUpdateStatus"
)

// errorResponse maps an error class to a status code. Server-side failures
// are logged; caller errors are not.
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrAuthMismatch):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrStore):
		app.logger.Error("store failure", "method", r.Method, "uri", r.URL.RequestURI(), "error", err)
		helpers.WriteError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		return
	default:
		app.logger.Error("request failed", "method", r.Method, "uri", r.URL.RequestURI(), "error", err)
		helpers.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	helpers.WriteError(w, status, err.Error())
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// healthCheck GET /health
func (app *application) healthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := app.store.Ping(r.Context()); err != nil {
		app.logger.Warn("health check: store unreachable", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, code, map[string]string{
		"status": status,
		"env":    app.config.env,
	})
}

// login POST /auth/login
func (app *application) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	u, err := app.users.Get(r.Context(), req.UID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			helpers.WriteError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		app.errorResponse(w, r, err)
		return
	}

	token, err := app.issuer.Issue(u.ID, u.RoleLevel)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	app.logger.Info("user logged in", "user", u.ID, "role", u.RoleLevel.String())
	helpers.WriteJSON(w, http.StatusOK, model.LoginResponse{Token: token})
}

// me GET /me
func (app *application) me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	u, err := app.users.Get(r.Context(), p.UserID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"user":    u,
		"role":    p.Role.String(),
		"classes": p.Role.Classes(),
	})
}

// dashboard GET /dashboard
func (app *application) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := app.reports.Dashboard(r.Context(), principal(r))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, d)
}

// listUsers GET /users
func (app *application) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := app.users.List(r.Context())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, users)
}

// getUser GET /users/{userId}
func (app *application) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := app.users.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, u)
}

// createUser POST /admin/users
func (app *application) createUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	u, err := app.users.Create(r.Context(), req)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.invalidate(r.Context(), service.UserKeys(u.ID)...)

	helpers.WriteJSON(w, http.StatusCreated, u)
}

// listGifts GET /gifts
func (app *application) listGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := app.gifts.List(r.Context(), principal(r))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, gifts)
}

// listTransactions GET /transactions?operation=&userId=
func (app *application) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := app.transactions.List(r.Context(), principal(r), q.Get("operation"), q.Get("userId"))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			helpers.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(views) {
			views = views[:n]
		}
	}

	helpers.WriteJSON(w, http.StatusOK, views)
}

// getTransaction GET /transactions/{id}
func (app *application) getTransaction(w http.ResponseWriter, r *http.Request) {
	v, err := app.transactions.Get(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, v)
}

// createTransaction POST /transactions
func (app *application) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTransactionRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	tx, err := app.transactions.Create(r.Context(), principal(r), req)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.invalidate(r.Context(), service.TransactionKeys(tx)...)

	helpers.WriteJSON(w, http.StatusCreated, tx)
}

// acceptTransaction POST /transactions/{id}/accept
func (app *application) acceptTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := app.transactions.Accept(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.invalidate(r.Context(), service.TransactionKeys(tx)...)

	helpers.WriteJSON(w, http.StatusOK, tx)
}

// declineTransaction POST /transactions/{id}/decline
func (app *application) declineTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := app.transactions.Decline(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.invalidate(r.Context(), service.TransactionKeys(tx)...)

	helpers.WriteJSON(w, http.StatusOK, map[string]string{"message": "transaction declined", "id": tx.ID})
}

// updateData PUT /data handles both batch status updates and single-document
// updates.
func (app *application) updateData(w http.ResponseWriter, r *http.Request) {
	var req model.DataUpdateRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	p := principal(r)
	ctx := r.Context()

	if req.Action != "" {
		if req.Action != actionBatchUpdateStatus || req.Collection != collectionTransactions {
			helpers.WriteError(w, http.StatusBadRequest, "unsupported action "+strconv.Quote(req.Action)+" on "+req.Collection)
			return
		}
		updated, err := app.batches.CommitDescriptors(ctx, p, req.AuthorizingUserID, req.Transactions)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.TransactionKeys(updated...)...)
		helpers.WriteJSON(w, http.StatusOK, map[string]any{"updated": updated})
		return
	}

	if req.DocID == "" || len(req.Data) == 0 {
		helpers.WriteError(w, http.StatusBadRequest, "docId and data are required")
		return
	}

	switch req.Collection {
	case collectionTransactions:
		updated, err := app.transactions.UpdateDocument(ctx, p, req.DocID, req.Data)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.TransactionKeys(updated...)...)
		helpers.WriteJSON(w, http.StatusOK, map[string]any{"updated": updated})

	case collectionUsers:
		if !p.Role.IsAdmin() {
			helpers.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		u, err := app.users.Update(ctx, req.DocID, req.Data)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.UserKeys(u.ID)...)
		helpers.WriteJSON(w, http.StatusOK, u)

	case collectionGifts:
		if !p.Role.IsAdmin() {
			helpers.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		g, err := app.gifts.Update(ctx, req.DocID, req.Data)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.KeyGiftsAll)
		helpers.WriteJSON(w, http.StatusOK, g)

	default:
		helpers.WriteError(w, http.StatusBadRequest, "unknown collection "+strconv.Quote(req.Collection))
	}
}

// deleteData DELETE /data
func (app *application) deleteData(w http.ResponseWriter, r *http.Request) {
	var req model.DataDeleteRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	p := principal(r)
	ctx := r.Context()

	if req.Collection != collectionTransactions && !p.Role.IsAdmin() {
		helpers.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch req.Collection {
	case collectionTransactions:
		tx, err := app.transactions.Decline(ctx, p, req.DocID)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.TransactionKeys(tx)...)

	case collectionUsers:
		if err := app.users.Delete(ctx, req.DocID); err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.UserKeys(req.DocID)...)

	case collectionGifts:
		if err := app.gifts.Delete(ctx, req.DocID); err != nil {
			app.errorResponse(w, r, err)
			return
		}
		app.invalidate(ctx, service.KeyGiftsAll)

	default:
		helpers.WriteError(w, http.StatusBadRequest, "unknown collection "+strconv.Quote(req.Collection))
		return
	}

	helpers.WriteJSON(w, http.StatusOK, map[string]string{"message": "deleted", "id": req.DocID})
}

// obligations GET /reports/obligations
func (app *application) obligations(w http.ResponseWriter, r *http.Request) {
	report, err := app.reports.Obligations(r.Context())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, report)
}
