package backend

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jo-hoe/gotimeline/internal/backend/storage"
	"github.com/jo-hoe/gotimeline/internal/common"
	"github.com/jo-hoe/gotimeline/internal/core"
	"github.com/jo-hoe/gotimeline/internal/frontend"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadFile struct {
	field    string
	filename string
	content  []byte
}

// Test helper: create an echo instance with the API and page routes over a temp public dir
func setupTestServer(t *testing.T) (*echo.Echo, *core.CoreService) {
	return setupTestServerWithStore(t, core.Store{Type: storage.TypeJSON})
}

func setupTestServerWithStore(t *testing.T, store core.Store) (*echo.Echo, *core.CoreService) {
	t.Helper()

	cfg := core.DefaultConfig()
	cfg.PublicDir = filepath.Join(t.TempDir(), "public")
	cfg.Store = store
	coreService, err := core.NewCoreService(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	e.Validator = common.NewGenericEchoValidator()
	NewAPIService(coreService).SetRoutes(e)
	frontend.NewFrontendService(cfg).SetRoutes(e)
	return e, coreService
}

// Test helper: build a multipart POST to the entries route
func newUploadRequest(t *testing.T, fields map[string]string, files []uploadFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, EntriesRoute, &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func validFiles() []uploadFile {
	return []uploadFile{
		{field: "avatar", filename: "a.png", content: []byte("avatar")},
		{field: "image", filename: "b.jpg", content: []byte("image")},
	}
}

func readTimelineFile(t *testing.T, coreService *core.CoreService) []storage.Entry {
	t.Helper()

	data, err := os.ReadFile(coreService.Config().TimelinePath())
	require.NoError(t, err)
	var entries []storage.Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	return entries
}

func imageCount(t *testing.T, coreService *core.CoreService) int {
	t.Helper()

	files, err := os.ReadDir(coreService.Config().ImagesDir())
	require.NoError(t, err)
	return len(files)
}

func TestCreateEntry_Success(t *testing.T) {
	e, coreService := setupTestServer(t)

	req := newUploadRequest(t, map[string]string{"username": "alice", "time": "2024-01-01"}, validFiles())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	entries := readTimelineFile(t, coreService)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "2024-01-01", entries[0].Time)
	assert.Regexp(t, regexp.MustCompile(`^assets/imgs/[0-9a-f-]{36}\.png$`), entries[0].Avatar)
	assert.Regexp(t, regexp.MustCompile(`^assets/imgs/[0-9a-f-]{36}\.jpg$`), entries[0].Image)
	assert.NotEqual(t, filepath.Base(entries[0].Avatar)[:36], filepath.Base(entries[0].Image)[:36])

	assert.Equal(t, 2, imageCount(t, coreService))
	for _, rel := range []string{entries[0].Avatar, entries[0].Image} {
		_, err := os.Stat(filepath.Join(coreService.Config().ImagesDir(), filepath.Base(rel)))
		assert.NoError(t, err)
	}
}

func TestCreateEntry_MissingInputs(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []uploadFile
	}{
		{
			name:   "missing username",
			fields: map[string]string{"time": "2024-01-01"},
			files:  validFiles(),
		},
		{
			name:   "missing time",
			fields: map[string]string{"username": "alice"},
			files:  validFiles(),
		},
		{
			name:   "empty username",
			fields: map[string]string{"username": "", "time": "2024-01-01"},
			files:  validFiles(),
		},
		{
			name:   "missing avatar",
			fields: map[string]string{"username": "alice", "time": "2024-01-01"},
			files:  validFiles()[1:],
		},
		{
			name:   "missing image",
			fields: map[string]string{"username": "alice", "time": "2024-01-01"},
			files:  validFiles()[:1],
		},
		{
			name:   "nothing at all",
			fields: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, coreService := setupTestServer(t)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, newUploadRequest(t, tt.fields, tt.files))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Missing fields"}`, rec.Body.String())
			assert.Equal(t, 0, imageCount(t, coreService))
			_, err := os.Stat(coreService.Config().TimelinePath())
			assert.True(t, os.IsNotExist(err), "timeline file must not be written")
		})
	}
}

func TestCreateEntry_NotMultipart(t *testing.T) {
	e, coreService := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, EntriesRoute, bytes.NewBufferString("username=alice&time=now"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing fields"}`, rec.Body.String())
	assert.Equal(t, 0, imageCount(t, coreService))
}

func TestCreateEntry_TooManyFiles(t *testing.T) {
	e, coreService := setupTestServer(t)

	files := append(validFiles(), uploadFile{field: "avatar", filename: "c.png", content: []byte("c")})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, newUploadRequest(t, map[string]string{"username": "alice", "time": "now"}, files))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Too many files"}`, rec.Body.String())
	assert.Equal(t, 0, imageCount(t, coreService))
}

func TestCreateEntry_RecoversFromCorruptTimeline(t *testing.T) {
	e, coreService := setupTestServer(t)
	require.NoError(t, os.WriteFile(coreService.Config().TimelinePath(), []byte("{broken"), 0o644))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, newUploadRequest(t, map[string]string{"username": "bob", "time": "t"}, validFiles()))

	require.Equal(t, http.StatusOK, rec.Code)
	entries := readTimelineFile(t, coreService)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Username)
}

func TestListEntries(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, EntriesRoute, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, name := range []string{"alice", "bob"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, newUploadRequest(t, map[string]string{"username": name, "time": "t"}, validFiles()))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, EntriesRoute, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []storage.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "bob", entries[1].Username)
}

func getTimelineFile(e *echo.Echo) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, TimelineRoute, nil))
	return rec
}

func TestTimelineFile_JSONStoreServesFileOnDisk(t *testing.T) {
	e, coreService := setupTestServer(t)

	rec := getTimelineFile(e)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, newUploadRequest(t, map[string]string{"username": "a<b", "time": "2024-01-01"}, validFiles()))
	require.Equal(t, http.StatusOK, rec.Code)

	onDisk, err := os.ReadFile(coreService.Config().TimelinePath())
	require.NoError(t, err)
	rec = getTimelineFile(e)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(onDisk), rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"username": "a<b"`)
}

func TestTimelineFile_JSONStoreServesBytesVerbatim(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown keys", content: `[{"username":"a","time":"t","avatar":"x","image":"y","note":"kept"}]`},
		{name: "corrupt file", content: "{broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, coreService := setupTestServer(t)
			require.NoError(t, os.WriteFile(coreService.Config().TimelinePath(), []byte(tt.content), 0o644))

			rec := getTimelineFile(e)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.content, rec.Body.String())
		})
	}
}

func TestTimelineFile_SQLiteStoreRendersEntries(t *testing.T) {
	e, _ := setupTestServerWithStore(t, core.Store{Type: storage.TypeSQLite, ConnectionString: ":memory:"})

	rec := getTimelineFile(e)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, newUploadRequest(t, map[string]string{"username": "alice", "time": "2024-01-01"}, validFiles()))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getTimelineFile(e)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))

	var entries []storage.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)
}
