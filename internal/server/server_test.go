package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-notes-app/internal/notes"
	"paper-notes-app/internal/pics"
	"paper-notes-app/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMirror struct {
	puts    []string
	deletes []string
	err     error
}

func (m *fakeMirror) Put(name, localPath string) error {
	m.puts = append(m.puts, name)
	return m.err
}

func (m *fakeMirror) Delete(name string) error {
	m.deletes = append(m.deletes, name)
	return m.err
}

type fakeAudit struct {
	entries []store.Log
	err     error
}

func (a *fakeAudit) SaveLog(entry store.Log) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *fakeAudit) RecentLogs(limit int) ([]store.Log, error) {
	if limit < len(a.entries) {
		return a.entries[:limit], nil
	}
	return a.entries, nil
}

type testEnv struct {
	root   string
	notes  *notes.Store
	pics   *pics.Dir
	mirror *fakeMirror
	audit  *fakeAudit
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:   root,
		notes:  notes.NewStore(filepath.Join(root, "notes")),
		pics:   pics.NewDir(filepath.Join(root, "notes", "pics")),
		mirror: &fakeMirror{},
		audit:  &fakeAudit{},
	}
	env.router = New(Options{
		StaticDir: root,
		Notes:     env.notes,
		Pics:      env.pics,
		Mirror:    env.mirror,
		Audit:     env.audit,
	}).Router()
	return env
}

func (e *testEnv) writeDocument(t *testing.T, doc string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.notes.Dir(), 0o755))
	require.NoError(t, os.WriteFile(e.notes.DocumentPath(), []byte(doc), 0o644))
}

func (e *testEnv) readDocument(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.notes.DocumentPath())
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) upload(t *testing.T, paperID, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if paperID != "" {
		require.NoError(t, writer.WriteField("paperId", paperID))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("core_pic", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-core-pic", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const paperDoc = `{"papers": {"p1": {"basic": {"title": "T1", "file_address": "A\\doc1"}, "notes": {"keep": [1, 2]}}}}`

func TestUpdateTotalJSONCreatesDocument(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON("/api/update-total-json", `{"paperId": "p1", "paperData": {"basic": {"title": "T1"}, "z": 1, "a": 2}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "p1", body["paperId"])

	doc := env.readDocument(t)
	assert.JSONEq(t, `{"papers": {"p1": {"basic": {"title": "T1"}, "z": 1, "a": 2}}}`, doc)
	assert.Less(t, strings.Index(doc, `"z"`), strings.Index(doc, `"a"`), "field order is preserved")
	assert.Len(t, env.audit.entries, 1)
	assert.Equal(t, store.ActionUpdatePaper, env.audit.entries[0].Action)
}

func TestUpdateTotalJSONIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, `{"papers": {"other": {"x": 1}}, "meta": "kept"}`)

	payload := `{"paperId": "p1", "paperData": {"basic": {"title": "T1"}, "tags": ["a"]}}`
	require.Equal(t, http.StatusOK, env.postJSON("/api/update-total-json", payload).Code)
	first := env.readDocument(t)
	require.Equal(t, http.StatusOK, env.postJSON("/api/update-total-json", payload).Code)

	assert.Equal(t, first, env.readDocument(t))
	assert.JSONEq(t, `{"papers": {"other": {"x": 1}, "p1": {"basic": {"title": "T1"}, "tags": ["a"]}}, "meta": "kept"}`, first)
}

func TestUpdateTotalJSONOverwritesCorruptDocument(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, "{broken")

	w := env.postJSON("/api/update-total-json", `{"paperId": "p1", "paperData": {"n": 1}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"papers": {"p1": {"n": 1}}}`, env.readDocument(t))
}

func TestUpdateTotalJSONNumericPaperID(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON("/api/update-total-json", `{"paperId": 42, "paperData": {"n": 1}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "42", decode(t, w)["paperId"])
	assert.JSONEq(t, `{"papers": {"42": {"n": 1}}}`, env.readDocument(t))
}

func TestUpdateTotalJSONValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"paperData": {"n": 1}}`,
		`{"paperId": "p1"}`,
		`{"paperId": "p1", "paperData": null}`,
		`{"paperId": "", "paperData": {}}`,
		`{"paperId": 0, "paperData": {}}`,
		`{"paperId": ["p1"], "paperData": {}}`,
		`not json`,
		``,
	} {
		w := env.postJSON("/api/update-total-json", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.NotEmpty(t, decode(t, w)["error"])
	}
	_, err := os.Stat(env.notes.DocumentPath())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGetTotalJSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/total-json", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "failed to read total.json", body["error"])
	assert.NotEmpty(t, body["details"])

	env.writeDocument(t, paperDoc)
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/total-json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, paperDoc, w.Body.String())
}

func TestGenerateStructure(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, `{"papers": {
		"p1": {"basic": {"file_address": "A\\B\\doc1", "title": "T1"}},
		"p2": {"basic": {"file_address": "A\\doc2", "title": "T2"}},
		"p3": {"basic": {"file_address": "A\\doc3", "title": "请输入标题"}},
		"样例": {"basic": {"file_address": "S\\doc", "title": "Sample"}}
	}}`)

	w := env.postJSON("/api/generate-structure", ``)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "A\n  T2\n  B\n    T1\n", body["structureText"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/notes/structure.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "A\n  T2\n  B\n    T1\n", w.Body.String())

	w = env.postJSON("/api/generate-structure", `{"includePlaceholder": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A\n  T2\n  请输入标题\n  B\n    T1\n", decode(t, w)["structureText"])
}

func TestGenerateStructureErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON("/api/generate-structure", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "missing total.json")

	env.writeDocument(t, paperDoc)
	w = env.postJSON("/api/generate-structure", `{"includePlaceholder": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateStructurePlaceholderTruthiness(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, `{"papers": {"p1": {"basic": {"file_address": "A\\doc1", "title": "请输入标题"}}}}`)

	for body, want := range map[string]string{
		`{"includePlaceholder": "yes"}`: "A\n  请输入标题\n",
		`{"includePlaceholder": 1}`:     "A\n  请输入标题\n",
		`{"includePlaceholder": 0}`:     "",
		`{"includePlaceholder": ""}`:    "",
	} {
		w := env.postJSON("/api/generate-structure", body)
		require.Equal(t, http.StatusOK, w.Code, "body %s", body)
		assert.Equal(t, want, decode(t, w)["structureText"], "body %s", body)
	}
}

func TestStructureTextMissing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/notes/structure.txt", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, decode(t, w)["details"])
}

func TestUploadAndDeleteCorePic(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)

	w := env.upload(t, "p1", "figure.PNG", []byte("png-data"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "p1.png", body["fileName"])
	assert.Equal(t, filepath.Join(env.pics.Path(), "p1.png"), body["filePath"])

	stored, err := os.ReadFile(env.pics.PathOf("p1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-data", string(stored))

	collection, err := env.notes.Read()
	require.NoError(t, err)
	paper, _ := collection.Get("p1")
	assert.Equal(t, "p1.png", paper.CorePic())
	assert.Contains(t, string(paper), `"notes":{"keep":[1,2]}`)
	assert.Equal(t, []string{"p1.png"}, env.mirror.puts)

	req := httptest.NewRequest(http.MethodDelete, "/api/delete-core-pic/p1", nil)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["success"])

	_, err = os.Stat(env.pics.PathOf("p1.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	collection, err = env.notes.Read()
	require.NoError(t, err)
	paper, _ = collection.Get("p1")
	assert.Equal(t, "", paper.CorePic())
	assert.JSONEq(t, `{"basic": {"title": "T1", "file_address": "A\\doc1"}, "notes": {"keep": [1, 2]}, "method": {}}`, string(paper))
	assert.Equal(t, []string{"p1.png"}, env.mirror.deletes)

	var actions []string
	for _, entry := range env.audit.entries {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{store.ActionUploadCorePic, store.ActionDeleteCorePic}, actions)
}

func TestDeleteCorePicWhenFileAlreadyGone(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, `{"papers": {"p1": {"method": {"core_pic": "p1.jpg", "steps": 3}}}}`)
	env.mirror.err = errors.New("bucket unavailable")

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/delete-core-pic/p1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"papers": {"p1": {"method": {"steps": 3}}}}`, env.readDocument(t))
}

func TestDeleteCorePicWithoutPicture(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)
	before := env.readDocument(t)

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/delete-core-pic/p1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
	assert.Equal(t, before, env.readDocument(t), "no-op leaves the file untouched")
	assert.Empty(t, env.audit.entries)
}

func TestDeleteCorePicUnknownPaper(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/delete-core-pic/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["error"], "missing")
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)
	before := env.readDocument(t)

	w := env.upload(t, "p1", "anim.gif", []byte("gif"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "jpg")

	assert.Equal(t, before, env.readDocument(t))
	_, err := os.Stat(env.pics.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing is stored")
	assert.Empty(t, env.mirror.puts)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)

	w := env.upload(t, "", "a.png", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "paperId")

	w = env.upload(t, "p1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pics.ErrMissingFile.Error(), decode(t, w)["error"])

	w = env.upload(t, "../p1", "a.png", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload-core-pic", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestUploadTooLarge(t *testing.T) {
	root := t.TempDir()
	notesStore := notes.NewStore(filepath.Join(root, "notes"))
	picsDir := pics.NewDir(filepath.Join(root, "notes", "pics"))
	router := New(Options{Notes: notesStore, Pics: picsDir, MaxUploadBytes: 16}).Router()
	env := &testEnv{root: root, notes: notesStore, pics: picsDir, router: router}
	env.writeDocument(t, paperDoc)

	w := env.upload(t, "p1", "big.png", bytes.Repeat([]byte("x"), 17))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, err := os.Stat(picsDir.PathOf("p1.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUploadUnknownPaper(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)
	before := env.readDocument(t)

	w := env.upload(t, "ghost", "a.jpg", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, before, env.readDocument(t))
}

func TestUploadQueryPaperID(t *testing.T) {
	env := newTestEnv(t)
	env.writeDocument(t, paperDoc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("core_pic", "x.jpeg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-core-pic?paperId=p1", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "p1.jpeg", decode(t, w)["fileName"])
}

func TestAuditFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t)
	env.audit.err = errors.New("db down")

	w := env.postJSON("/api/update-total-json", `{"paperId": "p1", "paperData": {"n": 1}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.postJSON("/api/update-total-json", `{"paperId": "p1", "paperData": {"n": 1}}`).Code)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/logs?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode(t, w)["logs"].([]any)
	assert.Len(t, logs, 1)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/logs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaticFilesAndHealth(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "offline"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "offline", "paper_editor.html"), []byte("<html>editor</html>"), 0o644))

	w := env.do(httptest.NewRequest(http.MethodGet, "/offline/paper_editor.html", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>editor</html>", w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/offline/missing.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodPost, "/offline/paper_editor.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, os.WriteFile(filepath.Join(env.root, ".env"), []byte("AWS_SECRET_ACCESS_KEY=s3cr3t\nDB_PASSWORD=hunter2\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, ".git", "config"), []byte("[core]"), 0o644))
	for _, path := range []string{"/.env", "/.git/config"} {
		w = env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), "s3cr3t", path)
	}

	env.writeDocument(t, paperDoc)
	for _, path := range []string{"/notes/", "/offline/", "/"} {
		w = env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), "href", path)
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/notes/total.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, os.WriteFile(filepath.Join(env.root, "offline", "index.html"), []byte("<html>index</html>"), 0o644))
	w = env.do(httptest.NewRequest(http.MethodGet, "/offline/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>index</html>", w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["healthy"])
}
