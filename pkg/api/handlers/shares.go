package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// ShareHandler serves the sharing and permission endpoints.
type ShareHandler struct {
	drive *drive.Drive
	users users.Store
}

// NewShareHandler creates a share handler.
func NewShareHandler(d *drive.Drive, userStore users.Store) *ShareHandler {
	return &ShareHandler{drive: d, users: userStore}
}

// granteeFrom resolves the grantee URL parameter to an account ID.
func (h *ShareHandler) granteeFrom(w http.ResponseWriter, r *http.Request) (metadata.UserID, bool) {
	user, err := h.users.GetUserByUsername(r.Context(), chi.URLParam(r, "grantee"))
	if err != nil {
		writeStoreError(w, err)
		return "", false
	}
	return user.UserID(), true
}

// ShareRequest is the body of a grant call.
type ShareRequest struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
}

// Share grants a named user access to an entry, replacing any previous
// grant for the same grantee.
//
// PUT /api/v1/entries/{id}/shares/{grantee}
func (h *ShareHandler) Share(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req ShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	grantee, ok := h.granteeFrom(w, r)
	if !ok {
		return
	}

	grant := metadata.ShareGrant{Read: req.Read, Write: req.Write, Delete: req.Delete}
	entry, err := h.drive.Share(r.Context(), actor,
		metadata.EntryID(chi.URLParam(r, "id")), grantee, grant)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// Revoke removes a grantee's access to an entry.
//
// DELETE /api/v1/entries/{id}/shares/{grantee}
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	grantee, ok := h.granteeFrom(w, r)
	if !ok {
		return
	}

	entry, err := h.drive.Revoke(r.Context(), actor,
		metadata.EntryID(chi.URLParam(r, "id")), grantee)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// PermissionsRequest is the body of a permission update call.
type PermissionsRequest struct {
	Owner  metadata.Capabilities `json:"owner"`
	Others metadata.Capabilities `json:"others"`
}

// SetPermissions replaces an entry's owner and everyone-else capability
// sets.
//
// PUT /api/v1/entries/{id}/permissions
func (h *ShareHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req PermissionsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	entry, err := h.drive.SetPermissions(r.Context(), actor,
		metadata.EntryID(chi.URLParam(r, "id")), req.Owner, req.Others)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// SharedWithMe lists the entries other users have shared with the actor.
//
// GET /api/v1/shared
func (h *ShareHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	entries, err := h.drive.ListSharedWith(r.Context(), actor)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entries)
}
