package drive

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// SortKey selects the listing sort order.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByModified SortKey = "modified"
	SortBySize     SortKey = "size"
)

// ListOptions filter, sort and paginate a directory listing.
type ListOptions struct {
	// TypeFilter restricts the listing to one entry kind. Empty means
	// both files and directories.
	TypeFilter metadata.EntryKind

	// Search keeps only entries whose name contains this text
	// (case-insensitive).
	Search string

	// SortBy orders the listing. Directories always sort before files;
	// the key orders within each group. Defaults to SortByName.
	SortBy SortKey

	// SortDesc reverses the sort order within each group.
	SortDesc bool

	// Offset and Limit paginate the sorted listing. Limit 0 means no
	// limit.
	Offset int
	Limit  int
}

// Page is one page of a directory listing.
type Page struct {
	Entries []*metadata.Entry

	// Total is the number of matching entries before pagination.
	Total int
}

// lookupDirectory resolves a normalized path to the owner's non-deleted
// directory entry. The root "/" exists implicitly and resolves to nil.
func (d *Drive) lookupDirectory(ctx context.Context, owner metadata.UserID, path string) (*metadata.Entry, error) {
	if path == "/" {
		return nil, nil
	}

	idx := strings.LastIndex(path, "/")
	parent, name := path[:idx], path[idx+1:]
	if parent == "" {
		parent = "/"
	}

	var found *metadata.Entry
	q := metadata.Query{Owner: owner, ParentPath: parent}
	err := d.entries.Query(ctx, q, func(e *metadata.Entry) error {
		if e.Name == name {
			found = e
			return metadata.ErrStopQuery
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, metadata.NewNotFound(path)
	}
	if found.Kind != metadata.KindDirectory {
		return nil, metadata.NewValidation("not a directory", path)
	}
	return found, nil
}

// CreateFile creates a file entry under parentPath, storing size payload
// bytes from r.
//
// The quota reservation happens before any payload write; a failed write
// releases it and leaves no reachable blob. Fails with a conflict
// StoreError on a sibling name collision and a quota StoreError when the
// owner's quota cannot cover the payload.
func (d *Drive) CreateFile(ctx context.Context, owner metadata.UserID, parentPath, name string, size int64, r io.Reader) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("CreateFile", time.Since(start), err)
	}()

	parentPath, err = metadata.NormalizePath(parentPath)
	if err != nil {
		return nil, err
	}
	if err = metadata.ValidateName(name); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, metadata.NewValidation("size must not be negative", "")
	}

	if _, err = d.lookupDirectory(ctx, owner, parentPath); err != nil {
		return nil, err
	}

	if err = d.ledger.Reserve(ctx, owner, size); err != nil {
		return nil, err
	}

	content, err := d.writeContent(ctx, size, r)
	if err != nil {
		d.ledger.release(ctx, owner, size)
		return nil, err
	}

	now := d.clock.Now()
	entry = &metadata.Entry{
		ID:                metadata.NewEntryID(),
		Name:              name,
		ParentPath:        parentPath,
		Kind:              metadata.KindFile,
		SizeBytes:         uint64(size),
		Content:           &content,
		Owner:             owner,
		OwnerPermissions:  metadata.AllCapabilities(),
		OthersPermissions: metadata.Capabilities{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err = d.entries.CreateEntry(ctx, entry); err != nil {
		d.discardContent(ctx, &content, metadata.JoinPath(parentPath, name))
		d.ledger.release(ctx, owner, size)
		return nil, err
	}

	return entry, nil
}

// CreateDirectory creates a directory entry under parentPath.
//
// Directories have zero size and no content, so no quota is involved.
func (d *Drive) CreateDirectory(ctx context.Context, owner metadata.UserID, parentPath, name string) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("CreateDirectory", time.Since(start), err)
	}()

	parentPath, err = metadata.NormalizePath(parentPath)
	if err != nil {
		return nil, err
	}
	if err = metadata.ValidateName(name); err != nil {
		return nil, err
	}

	if _, err = d.lookupDirectory(ctx, owner, parentPath); err != nil {
		return nil, err
	}

	now := d.clock.Now()
	entry = &metadata.Entry{
		ID:                metadata.NewEntryID(),
		Name:              name,
		ParentPath:        parentPath,
		Kind:              metadata.KindDirectory,
		Owner:             owner,
		OwnerPermissions:  metadata.AllCapabilities(),
		OthersPermissions: metadata.Capabilities{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err = d.entries.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the non-deleted entries directly under directoryPath that
// are visible to the actor: entries they own plus entries shared with
// them. Directories sort before files; within each group the sort key
// applies.
func (d *Drive) List(ctx context.Context, actor metadata.UserID, directoryPath string, opts ListOptions) (page *Page, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("List", time.Since(start), err)
	}()

	directoryPath, err = metadata.NormalizePath(directoryPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[metadata.EntryID]bool)
	var matched []*metadata.Entry

	appendMatches := func(e *metadata.Entry) error {
		if seen[e.ID] || !matchesListing(e, opts) {
			return nil
		}
		seen[e.ID] = true
		matched = append(matched, e)
		return nil
	}

	owned := metadata.Query{Owner: actor, ParentPath: directoryPath}
	if err = d.entries.Query(ctx, owned, appendMatches); err != nil {
		return nil, err
	}

	shared := metadata.Query{SharedWith: actor, ParentPath: directoryPath}
	if err = d.entries.Query(ctx, shared, appendMatches); err != nil {
		return nil, err
	}

	sortListing(matched, opts)

	total := len(matched)
	matched = paginate(matched, opts.Offset, opts.Limit)

	return &Page{Entries: matched, Total: total}, nil
}

func matchesListing(e *metadata.Entry, opts ListOptions) bool {
	if opts.TypeFilter != "" && e.Kind != opts.TypeFilter {
		return false
	}
	if opts.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(opts.Search)) {
		return false
	}
	return true
}

func sortListing(entries []*metadata.Entry, opts ListOptions) {
	less := func(a, b *metadata.Entry) bool {
		switch opts.SortBy {
		case SortByModified:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case SortBySize:
			if a.SizeBytes != b.SizeBytes {
				return a.SizeBytes < b.SizeBytes
			}
		}
		return a.Name < b.Name
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		// Directories first, regardless of sort direction.
		if a.IsDirectory() != b.IsDirectory() {
			return a.IsDirectory()
		}
		if opts.SortDesc {
			return less(b, a)
		}
		return less(a, b)
	})
}

func paginate(entries []*metadata.Entry, offset, limit int) []*metadata.Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// Rename changes an entry's leaf name.
//
// Requires the write capability. Renaming a directory rewrites the
// ParentPath of every descendant (see cascade); the renamed entry itself
// is updated first, atomically with its uniqueness check.
func (d *Drive) Rename(ctx context.Context, actor metadata.UserID, id metadata.EntryID, newName string) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("Rename", time.Since(start), err)
	}()

	if err = metadata.ValidateName(newName); err != nil {
		return nil, err
	}

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = requireAccess(current, actor, metadata.CapabilityWrite); err != nil {
		return nil, err
	}

	oldPath := current.Path()
	now := d.clock.Now()

	entry, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		e.Name = newName
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entry.IsDirectory() && oldPath != entry.Path() {
		if cascadeErr := d.cascadePathRewrite(ctx, entry.Owner, oldPath, entry.Path()); cascadeErr != nil {
			return entry, cascadeErr
		}
	}
	return entry, nil
}

// Move reparents an entry under newParentPath.
//
// Requires the write capability. Fails with an invalid-target StoreError
// when the destination is the entry's own path or lies inside its subtree
// (a cycle), and with a conflict StoreError on a destination name
// collision. Moving a directory cascades like Rename.
func (d *Drive) Move(ctx context.Context, actor metadata.UserID, id metadata.EntryID, newParentPath string) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("Move", time.Since(start), err)
	}()

	newParentPath, err = metadata.NormalizePath(newParentPath)
	if err != nil {
		return nil, err
	}

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = requireAccess(current, actor, metadata.CapabilityWrite); err != nil {
		return nil, err
	}

	oldPath := current.Path()
	if metadata.HasPathPrefix(newParentPath, oldPath) {
		return nil, metadata.NewError(metadata.ErrInvalidTarget, "cannot move an entry into its own subtree", newParentPath)
	}

	if _, err = d.lookupDirectory(ctx, current.Owner, newParentPath); err != nil {
		return nil, err
	}

	now := d.clock.Now()
	entry, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		e.ParentPath = newParentPath
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entry.IsDirectory() && oldPath != entry.Path() {
		if cascadeErr := d.cascadePathRewrite(ctx, entry.Owner, oldPath, entry.Path()); cascadeErr != nil {
			return entry, cascadeErr
		}
	}
	return entry, nil
}

// cascadePathRewrite rewrites the ParentPath prefix of every entry inside
// the subtree that moved from oldPath to newPath.
//
// Prefix matching is on path-segment boundaries ("/Foo" never captures
// "/FooBar"). Soft-deleted descendants move too, so a later restore lands
// at the right place. The walk is best-effort and non-transactional:
// failed rewrites are collected and reported as a PartialFailureError
// while the rest of the subtree proceeds, leaving a mix of old and new
// prefixes for the caller to retry.
func (d *Drive) cascadePathRewrite(ctx context.Context, owner metadata.UserID, oldPath, newPath string) error {
	type rewrite struct {
		id   metadata.EntryID
		path string
	}

	var pending []rewrite
	q := metadata.Query{Owner: owner, IncludeDeleted: true}
	err := d.entries.Query(ctx, q, func(e *metadata.Entry) error {
		if metadata.HasPathPrefix(e.ParentPath, oldPath) {
			pending = append(pending, rewrite{id: e.ID, path: metadata.ReplacePathPrefix(e.ParentPath, oldPath, newPath)})
		}
		return nil
	})
	if err != nil {
		return err
	}

	now := d.clock.Now()
	var failed []FailedEntry
	for _, rw := range pending {
		newParent := rw.path
		_, err := d.entries.UpdateEntry(ctx, rw.id, func(e *metadata.Entry) error {
			e.ParentPath = newParent
			e.UpdatedAt = now
			return nil
		})
		if err != nil {
			logger.Warn("Cascade rewrite of entry %s to %s failed: %v", rw.id, newParent, err)
			failed = append(failed, FailedEntry{ID: rw.id, Err: err})
		}
	}

	return partialFailure("cascade path rewrite", failed)
}
