package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// TrashHandler serves the soft-delete lifecycle endpoints.
type TrashHandler struct {
	drive *drive.Drive
}

// NewTrashHandler creates a trash handler.
func NewTrashHandler(d *drive.Drive) *TrashHandler {
	return &TrashHandler{drive: d}
}

// Delete moves an entry to the trash.
//
// DELETE /api/v1/entries/{id}
func (h *TrashHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	entry, err := h.drive.SoftDelete(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// List returns the acting user's trashed entries, newest first.
//
// GET /api/v1/trash
func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	entries, err := h.drive.ListTrashed(r.Context(), actor)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entries)
}

// Restore brings a trashed entry back into the namespace.
//
// POST /api/v1/trash/{id}/restore
func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	entry, err := h.drive.Restore(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// Purge permanently removes an entry, releasing its quota and payload.
//
// DELETE /api/v1/trash/{id}
func (h *TrashHandler) Purge(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	err := h.drive.PermanentDelete(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteNoContent(w)
}
