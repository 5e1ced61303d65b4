package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/api/handlers"
	"github.com/nimbusfs/nimbus/pkg/drive"
	blobmemory "github.com/nimbusfs/nimbus/pkg/store/blob/memory"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	metadatamemory "github.com/nimbusfs/nimbus/pkg/store/metadata/memory"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

type testAPI struct {
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	entries, err := metadatamemory.NewMemoryMetadataStore(ctx)
	require.NoError(t, err)
	blobs, err := blobmemory.NewMemoryBlobStore(ctx)
	require.NoError(t, err)
	userStore, err := users.New(&users.Config{
		Type:   users.DatabaseTypeSQLite,
		SQLite: users.SQLiteConfig{Path: filepath.Join(t.TempDir(), "users.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = userStore.Close()
		_ = blobs.Close()
		_ = entries.Close()
	})

	d := drive.New(drive.Config{}, entries, blobs, userStore)
	router := NewRouter(Dependencies{
		Drive:   d,
		Entries: entries,
		Blobs:   blobs,
		Users:   userStore,
	}, time.Minute)

	return &testAPI{router: router}
}

// do performs a request against the router. An empty actor leaves the
// identity header unset.
func (a *testAPI) do(t *testing.T, method, target, actor string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if actor != "" {
		req.Header.Set(handlers.ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, target, actor string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return a.do(t, method, target, actor, bytes.NewReader(data))
}

func decodeEntry(t *testing.T, rec *httptest.ResponseRecorder) *metadata.Entry {
	t.Helper()
	var entry metadata.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	return &entry
}

func (a *testAPI) provision(t *testing.T, username string, quota int64) {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/v1/users", "", handlers.ProvisionRequest{
		Username:   username,
		QuotaBytes: quota,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (a *testAPI) upload(t *testing.T, actor, parent, name, payload string) *metadata.Entry {
	t.Helper()
	rec := a.do(t, http.MethodPost,
		"/api/v1/files?parent="+parent+"&name="+name,
		actor, bytes.NewReader([]byte(payload)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeEntry(t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status["metadata"])
	assert.Equal(t, "ok", status["blob"])
	assert.Equal(t, "ok", status["users"])
}

func TestUserEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.provision(t, "alice", 1000)

	t.Run("DuplicateUsernameConflicts", func(t *testing.T) {
		rec := a.doJSON(t, http.MethodPost, "/api/v1/users", "",
			handlers.ProvisionRequest{Username: "alice", QuotaBytes: 10})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, handlers.ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	})

	t.Run("Get", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/users/alice", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var user users.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, int64(1000), user.QuotaBytes)
	})

	t.Run("GetUnknownUser", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/users/nobody", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("List", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/users", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list []*users.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "alice", list[0].Username)
	})

	t.Run("Usage", func(t *testing.T) {
		a.upload(t, "alice", "/", "a.txt", "12345")

		rec := a.do(t, http.MethodGet, "/api/v1/users/alice/usage", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var usage handlers.UsageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
		assert.Equal(t, int64(5), usage.UsedBytes)
		assert.Equal(t, int64(1000), usage.QuotaBytes)
	})

	t.Run("Reconcile", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/users/alice/reconcile", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var result handlers.ReconcileResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, int64(5), result.TotalBytes)
		assert.Equal(t, int64(0), result.DriftBytes)
	})
}

func TestFileEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.provision(t, "alice", 1000)

	t.Run("UploadRequiresActor", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/files?parent=/&name=a.txt", "",
			bytes.NewReader([]byte("hi")))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("UploadAndDownload", func(t *testing.T) {
		entry := a.upload(t, "alice", "/", "report.txt", "hello world")
		assert.Equal(t, "report.txt", entry.Name)
		assert.Equal(t, uint64(11), entry.SizeBytes)

		rec := a.do(t, http.MethodGet, "/api/v1/entries/"+string(entry.ID)+"/content", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello world", rec.Body.String())
		assert.Equal(t, "11", rec.Header().Get("Content-Length"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.txt")
	})

	t.Run("UploadBeyondQuota", func(t *testing.T) {
		payload := bytes.Repeat([]byte("x"), 2000)
		rec := a.do(t, http.MethodPost, "/api/v1/files?parent=/&name=big.bin", "alice",
			bytes.NewReader(payload))
		assert.Equal(t, http.StatusInsufficientStorage, rec.Code)
	})

	t.Run("MkdirAndList", func(t *testing.T) {
		rec := a.doJSON(t, http.MethodPost, "/api/v1/directories", "alice",
			handlers.MkdirRequest{ParentPath: "/", Name: "Documents"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodGet, "/api/v1/entries?path=/&type=directory", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var page handlers.ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		names := make([]string, 0, len(page.Entries))
		for _, e := range page.Entries {
			names = append(names, e.Name)
		}
		// Provisioning created the home directory "alice" at the root.
		assert.Equal(t, []string{"Documents", "alice"}, names)
	})

	t.Run("RenameAndMove", func(t *testing.T) {
		entry := a.upload(t, "alice", "/", "draft.txt", "v1")

		rec := a.doJSON(t, http.MethodPost, "/api/v1/entries/"+string(entry.ID)+"/rename", "alice",
			handlers.RenameRequest{NewName: "final.txt"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "final.txt", decodeEntry(t, rec).Name)

		rec = a.doJSON(t, http.MethodPost, "/api/v1/entries/"+string(entry.ID)+"/move", "alice",
			handlers.MoveRequest{NewParentPath: "/Documents"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "/Documents", decodeEntry(t, rec).ParentPath)
	})

	t.Run("MissingParentIs404", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/files?parent=/nope&name=a.txt", "alice",
			bytes.NewReader([]byte("x")))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("InvalidLimitIs400", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/entries?limit=banana", "alice", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrashEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.provision(t, "alice", 1000)
	entry := a.upload(t, "alice", "/", "old.txt", "bye")

	rec := a.do(t, http.MethodDelete, "/api/v1/entries/"+string(entry.ID), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, decodeEntry(t, rec).DeletedAt)

	rec = a.do(t, http.MethodGet, "/api/v1/trash", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trashed []*metadata.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trashed))
	require.Len(t, trashed, 1)
	assert.Equal(t, entry.ID, trashed[0].ID)

	rec = a.do(t, http.MethodPost, "/api/v1/trash/"+string(entry.ID)+"/restore", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decodeEntry(t, rec).DeletedAt)

	rec = a.do(t, http.MethodDelete, "/api/v1/trash/"+string(entry.ID), "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/entries/"+string(entry.ID), "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.provision(t, "alice", 1000)
	a.provision(t, "bob", 1000)

	entry := a.upload(t, "alice", "/", "shared.txt", "secret")

	t.Run("GranteeGainsReadAccess", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/entries/"+string(entry.ID)+"/content", "bob", nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = a.doJSON(t, http.MethodPut, "/api/v1/entries/"+string(entry.ID)+"/shares/bob", "alice",
			handlers.ShareRequest{Read: true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodGet, "/api/v1/entries/"+string(entry.ID)+"/content", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "secret", rec.Body.String())

		rec = a.do(t, http.MethodGet, "/api/v1/shared", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var shared []*metadata.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shared))
		require.Len(t, shared, 1)
		assert.Equal(t, entry.ID, shared[0].ID)
	})

	t.Run("RevokeClosesAccess", func(t *testing.T) {
		rec := a.do(t, http.MethodDelete, "/api/v1/entries/"+string(entry.ID)+"/shares/bob", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodGet, "/api/v1/entries/"+string(entry.ID)+"/content", "bob", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("GranteeCannotShare", func(t *testing.T) {
		rec := a.doJSON(t, http.MethodPut, "/api/v1/entries/"+string(entry.ID)+"/shares/bob", "bob",
			handlers.ShareRequest{Read: true})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("UnknownGranteeIs404", func(t *testing.T) {
		rec := a.doJSON(t, http.MethodPut, "/api/v1/entries/"+string(entry.ID)+"/shares/nobody", "alice",
			handlers.ShareRequest{Read: true})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("PublicReadPolicy", func(t *testing.T) {
		rec := a.doJSON(t, http.MethodPut, "/api/v1/entries/"+string(entry.ID)+"/permissions", "alice",
			handlers.PermissionsRequest{
				Owner:  metadata.AllCapabilities(),
				Others: metadata.Capabilities{Read: true},
			})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodGet, "/api/v1/entries/"+string(entry.ID)+"/content", "bob", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
