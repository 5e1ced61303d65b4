package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// UserHandler serves the account provisioning and quota endpoints.
type UserHandler struct {
	drive *drive.Drive
	users users.Store
}

// NewUserHandler creates a user handler.
func NewUserHandler(d *drive.Drive, userStore users.Store) *UserHandler {
	return &UserHandler{drive: d, users: userStore}
}

// ProvisionRequest is the body of a provisioning call.
type ProvisionRequest struct {
	Username   string `json:"username"`
	QuotaBytes int64  `json:"quota_bytes"`
}

// Provision creates an account with its home directory.
//
// POST /api/v1/users
func (h *UserHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.drive.ProvisionUser(r.Context(), req.Username, req.QuotaBytes)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONCreated(w, user)
}

// List returns every account.
//
// GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, list)
}

// Get returns one account by username.
//
// GET /api/v1/users/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, user)
}

// UsageResponse reports a user's storage consumption.
type UsageResponse struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// Usage returns the user's running byte total and quota.
//
// GET /api/v1/users/{username}/usage
func (h *UserHandler) Usage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.users.GetUserByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	used, quota, err := h.drive.Ledger().Usage(ctx, user.UserID())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, UsageResponse{UsedBytes: used, QuotaBytes: quota})
}

// ReconcileResponse reports the outcome of a quota reconciliation.
type ReconcileResponse struct {
	TotalBytes int64 `json:"total_bytes"`
	DriftBytes int64 `json:"drift_bytes"`
}

// Reconcile recomputes the user's usage counter from their entries.
//
// POST /api/v1/users/{username}/reconcile
func (h *UserHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.users.GetUserByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	total, drift, err := h.drive.Ledger().Reconcile(ctx, user.UserID())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, ReconcileResponse{TotalBytes: total, DriftBytes: drift})
}
