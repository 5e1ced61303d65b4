package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// EntryHandler serves the namespace and content endpoints.
type EntryHandler struct {
	drive *drive.Drive
}

// NewEntryHandler creates an entry handler.
func NewEntryHandler(d *drive.Drive) *EntryHandler {
	return &EntryHandler{drive: d}
}

// ListResponse is one page of a directory listing.
type ListResponse struct {
	Entries []*metadata.Entry `json:"entries"`
	Total   int               `json:"total"`
}

// List returns a directory listing for the acting user.
//
// GET /api/v1/entries?path=/&type=file&search=report&sort=size&desc=true&offset=0&limit=50
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	opts := drive.ListOptions{
		TypeFilter: metadata.EntryKind(r.URL.Query().Get("type")),
		Search:     r.URL.Query().Get("search"),
		SortBy:     drive.SortKey(r.URL.Query().Get("sort")),
		SortDesc:   r.URL.Query().Get("desc") == "true",
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "Invalid offset")
			return
		}
		opts.Offset = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "Invalid limit")
			return
		}
		opts.Limit = n
	}

	page, err := h.drive.List(r.Context(), actor, path, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, ListResponse{Entries: page.Entries, Total: page.Total})
}

// Get returns one entry's metadata.
//
// GET /api/v1/entries/{id}
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	entry, err := h.drive.GetEntry(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// Upload stores a new file from the request body.
//
// POST /api/v1/files?parent=/Documents&name=report.txt
func (h *EntryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	parent := r.URL.Query().Get("parent")
	if parent == "" {
		parent = "/"
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		BadRequest(w, "Missing name query parameter")
		return
	}
	if r.ContentLength < 0 {
		BadRequest(w, "Content-Length is required")
		return
	}

	entry, err := h.drive.CreateFile(r.Context(), actor, parent, name, r.ContentLength, r.Body)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONCreated(w, entry)
}

// Download streams a file's payload.
//
// GET /api/v1/entries/{id}/content
func (h *EntryHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rc, entry, err := h.drive.Download(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatUint(entry.SizeBytes, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+entry.Name+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are already out; all we can do is log.
		logger.Warn("Download of %s interrupted: %v", entry.ID, err)
	}
}

// MkdirRequest is the body of a directory creation call.
type MkdirRequest struct {
	ParentPath string `json:"parent_path"`
	Name       string `json:"name"`
}

// Mkdir creates a directory.
//
// POST /api/v1/directories
func (h *EntryHandler) Mkdir(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req MkdirRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ParentPath == "" {
		req.ParentPath = "/"
	}

	entry, err := h.drive.CreateDirectory(r.Context(), actor, req.ParentPath, req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONCreated(w, entry)
}

// RenameRequest is the body of a rename call.
type RenameRequest struct {
	NewName string `json:"new_name"`
}

// Rename changes an entry's leaf name.
//
// POST /api/v1/entries/{id}/rename
func (h *EntryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req RenameRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	entry, err := h.drive.Rename(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")), req.NewName)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}

// MoveRequest is the body of a move call.
type MoveRequest struct {
	NewParentPath string `json:"new_parent_path"`
}

// Move relocates an entry under a different directory.
//
// POST /api/v1/entries/{id}/move
func (h *EntryHandler) Move(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	entry, err := h.drive.Move(r.Context(), actor, metadata.EntryID(chi.URLParam(r, "id")), req.NewParentPath)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, entry)
}
