//go:build integration

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/driftfs/driftfs/pkg/api/auth"
	"github.com/driftfs/driftfs/pkg/api/middleware"
	"github.com/driftfs/driftfs/pkg/payload/store/memory"
	"github.com/driftfs/driftfs/pkg/vfs"
	"github.com/driftfs/driftfs/pkg/vfs/models"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

func setupFsTest(t *testing.T) (*vfs.Provider, *models.User, *DirectoryHandler, *FileHandler) {
	t.Helper()

	dbConfig := store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	}
	st, err := store.New(&dbConfig)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	provider := vfs.NewProvider(st, memory.New())
	user := createHandlerTestUser(t, st, "alice", "password123")

	return provider, user, NewDirectoryHandler(provider), NewFileHandler(provider, 0)
}

// fsRequest builds a request with query parameters and authenticated claims.
func fsRequest(user *models.User, method, target string, params map[string]string, body io.Reader) *http.Request {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req := httptest.NewRequest(method, target+"?"+q.Encode(), body)
	claims := &auth.Claims{UserID: user.ID, Username: user.Username, TokenType: auth.TokenTypeAccess}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func uploadFile(t *testing.T, h *FileHandler, user *models.User, path string, content []byte) NodeResponse {
	t.Helper()
	body, contentType := multipartBody(t, "upload.bin", content)
	req := fsRequest(user, http.MethodPost, "/api/v1/files", map[string]string{"path": path}, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Upload(%s) status = %d, body = %s", path, w.Code, w.Body.String())
	}
	var resp NodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal upload response: %v", err)
	}
	return resp
}

func TestDirectoryHandler_CreateAndList(t *testing.T) {
	_, user, dirs, _ := setupFsTest(t)

	t.Run("create directory", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories", map[string]string{"path": "/docs"}, nil)
		w := httptest.NewRecorder()

		dirs.Create(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Create() status = %d, body = %s", w.Code, w.Body.String())
		}
		var resp NodeResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Path != "/docs" || !resp.IsDirectory {
			t.Errorf("Unexpected node response: %+v", resp)
		}
	})

	t.Run("duplicate directory conflicts", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories", map[string]string{"path": "/docs"}, nil)
		w := httptest.NewRecorder()

		dirs.Create(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories", map[string]string{"path": "/nope/deep"}, nil)
		w := httptest.NewRecorder()

		dirs.Create(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("missing path parameter", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories", nil, nil)
		w := httptest.NewRecorder()

		dirs.Create(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("list defaults to root", func(t *testing.T) {
		req := fsRequest(user, http.MethodGet, "/api/v1/directories", nil, nil)
		w := httptest.NewRecorder()

		dirs.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, body = %s", w.Code, w.Body.String())
		}
		var entries []NodeResponse
		if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(entries) != 1 || entries[0].Name != "docs" {
			t.Errorf("Expected [docs], got %+v", entries)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/directories", nil)
		w := httptest.NewRecorder()

		dirs.List(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("List() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

func TestDirectoryHandler_MoveCopyRename(t *testing.T) {
	_, user, dirs, files := setupFsTest(t)

	mkdir := func(path string) {
		t.Helper()
		req := fsRequest(user, http.MethodPost, "/api/v1/directories", map[string]string{"path": path}, nil)
		w := httptest.NewRecorder()
		dirs.Create(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("Create(%s) status = %d, body = %s", path, w.Code, w.Body.String())
		}
	}

	mkdir("/src")
	mkdir("/src/sub")
	uploadFile(t, files, user, "/src/sub/a.txt", []byte("hello"))

	t.Run("copy directory", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories/copy",
			map[string]string{"path": "/src", "destination": "/backup"}, nil)
		w := httptest.NewRecorder()

		dirs.Copy(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Copy() status = %d, body = %s", w.Code, w.Body.String())
		}

		info := fsRequest(user, http.MethodGet, "/api/v1/nodes", map[string]string{"path": "/backup/sub/a.txt"}, nil)
		iw := httptest.NewRecorder()
		dirs.Info(iw, info)
		if iw.Code != http.StatusOK {
			t.Errorf("Expected copied file to exist, status = %d", iw.Code)
		}
	})

	t.Run("move into own subtree rejected", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories/move",
			map[string]string{"path": "/src", "destination": "/src/inside"}, nil)
		w := httptest.NewRecorder()

		dirs.Move(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Move() status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("move directory", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories/move",
			map[string]string{"path": "/src", "destination": "/moved"}, nil)
		w := httptest.NewRecorder()

		dirs.Move(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Move() status = %d, body = %s", w.Code, w.Body.String())
		}

		info := fsRequest(user, http.MethodGet, "/api/v1/nodes", map[string]string{"path": "/moved/sub/a.txt"}, nil)
		iw := httptest.NewRecorder()
		dirs.Info(iw, info)
		if iw.Code != http.StatusOK {
			t.Errorf("Expected moved file to exist, status = %d", iw.Code)
		}
	})

	t.Run("rename directory", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories/rename",
			map[string]string{"path": "/moved", "name": "renamed"}, nil)
		w := httptest.NewRecorder()

		dirs.Rename(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Rename() status = %d, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("rename onto existing sibling conflicts", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/directories/rename",
			map[string]string{"path": "/renamed", "name": "backup"}, nil)
		w := httptest.NewRecorder()

		dirs.Rename(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Rename() status = %d, want %d", w.Code, http.StatusConflict)
		}
	})
}

func TestFileHandler_UploadDownload(t *testing.T) {
	_, user, _, files := setupFsTest(t)

	content := []byte("the quick brown fox")
	node := uploadFile(t, files, user, "/notes.txt", content)

	if node.MimeType != "text/plain" {
		t.Errorf("Expected text/plain, got %s", node.MimeType)
	}
	if node.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), node.Size)
	}

	t.Run("download", func(t *testing.T) {
		req := fsRequest(user, http.MethodGet, "/api/v1/files", map[string]string{"path": "/notes.txt"}, nil)
		w := httptest.NewRecorder()

		files.Download(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Download() status = %d, body = %s", w.Code, w.Body.String())
		}
		if !bytes.Equal(w.Body.Bytes(), content) {
			t.Errorf("Downloaded content mismatch: %q", w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
			t.Errorf("Expected Content-Type text/plain, got %s", ct)
		}
		if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="notes.txt"` {
			t.Errorf("Unexpected Content-Disposition: %s", cd)
		}
	})

	t.Run("download missing file", func(t *testing.T) {
		req := fsRequest(user, http.MethodGet, "/api/v1/files", map[string]string{"path": "/missing.txt"}, nil)
		w := httptest.NewRecorder()

		files.Download(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Download() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("overwrite returns updated node", func(t *testing.T) {
		updated := uploadFile(t, files, user, "/notes.txt", []byte("rewritten"))
		if updated.Size != int64(len("rewritten")) {
			t.Errorf("Expected size %d, got %d", len("rewritten"), updated.Size)
		}
	})

	t.Run("missing multipart part", func(t *testing.T) {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		_ = mw.WriteField("other", "value")
		_ = mw.Close()

		req := fsRequest(user, http.MethodPost, "/api/v1/files", map[string]string{"path": "/x.txt"}, buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()

		files.Upload(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Upload() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestFileHandler_DeleteReapsPayload(t *testing.T) {
	provider, user, _, files := setupFsTest(t)
	ctx := context.Background()

	uploadFile(t, files, user, "/a.txt", []byte("payload"))

	req := fsRequest(user, http.MethodDelete, "/api/v1/files", map[string]string{"path": "/a.txt"}, nil)
	w := httptest.NewRecorder()

	files.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Delete() status = %d, body = %s", w.Code, w.Body.String())
	}

	count, err := provider.Store().CountBlobs(ctx)
	if err != nil {
		t.Fatalf("CountBlobs() error: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 blobs after delete, got %d", count)
	}
}

func TestFileHandler_MoveCopyRename(t *testing.T) {
	_, user, dirs, files := setupFsTest(t)

	uploadFile(t, files, user, "/a.txt", []byte("content"))

	t.Run("copy file", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/files/copy",
			map[string]string{"path": "/a.txt", "destination": "/b.txt"}, nil)
		w := httptest.NewRecorder()

		files.Copy(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Copy() status = %d, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("copy onto existing file conflicts", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/files/copy",
			map[string]string{"path": "/a.txt", "destination": "/b.txt"}, nil)
		w := httptest.NewRecorder()

		files.Copy(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Copy() status = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("move file", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/files/move",
			map[string]string{"path": "/b.txt", "destination": "/c.txt"}, nil)
		w := httptest.NewRecorder()

		files.Move(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Move() status = %d, body = %s", w.Code, w.Body.String())
		}

		info := fsRequest(user, http.MethodGet, "/api/v1/nodes", map[string]string{"path": "/b.txt"}, nil)
		iw := httptest.NewRecorder()
		dirs.Info(iw, info)
		if iw.Code != http.StatusNotFound {
			t.Errorf("Expected source gone after move, status = %d", iw.Code)
		}
	})

	t.Run("rename updates mime type", func(t *testing.T) {
		req := fsRequest(user, http.MethodPost, "/api/v1/files/rename",
			map[string]string{"path": "/c.txt", "name": "c.json"}, nil)
		w := httptest.NewRecorder()

		files.Rename(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("Rename() status = %d, body = %s", w.Code, w.Body.String())
		}

		info := fsRequest(user, http.MethodGet, "/api/v1/nodes", map[string]string{"path": "/c.json"}, nil)
		iw := httptest.NewRecorder()
		dirs.Info(iw, info)
		if iw.Code != http.StatusOK {
			t.Fatalf("Info() status = %d", iw.Code)
		}
		var resp NodeResponse
		if err := json.Unmarshal(iw.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.MimeType != "application/json" {
			t.Errorf("Expected application/json, got %s", resp.MimeType)
		}
	})
}
