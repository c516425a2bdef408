package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-go/internal/index"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/llm"
	"rag-chatbot-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDocs struct {
	cleanups  int
	uploaded  []service.UploadInput
	uploadOrg uint
	uploadErr error
	deleteErr error
	reindexed []*uint
}

func (f *fakeDocs) Upload(_ context.Context, org uint, in service.UploadInput) (*service.DocumentDTO, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploadOrg = org
	f.uploaded = append(f.uploaded, in)
	return &service.DocumentDTO{Document: &model.Document{ID: "new-id", Filename: in.Filename, OrganizationID: org}}, nil
}

func (f *fakeDocs) Delete(context.Context, uint, string) error { return f.deleteErr }

func (f *fakeDocs) List(_ context.Context, org uint) ([]service.DocumentDTO, error) {
	return []service.DocumentDTO{{Document: &model.Document{ID: "d1", OrganizationID: org}}}, nil
}

func (f *fakeDocs) SystemStats(context.Context) (*model.SystemStats, error) {
	return &model.SystemStats{TotalDocuments: 2, TotalChunks: 5, VectorDBStatus: "operational"}, nil
}

func (f *fakeDocs) OrganizationStats(_ context.Context, org uint) (*model.OrganizationStats, error) {
	return &model.OrganizationStats{TotalDocuments: 1, OrganizationID: org}, nil
}

func (f *fakeDocs) Reindex(_ context.Context, org *uint) (*service.ReindexReport, error) {
	f.reindexed = append(f.reindexed, org)
	return &service.ReindexReport{Total: 1, Indexed: 1, Failed: []string{}}, nil
}

func (f *fakeDocs) Cleanup(context.Context) (*service.CleanupReport, error) {
	f.cleanups++
	return &service.CleanupReport{OrphanedChunks: []string{"gone"}, OrphanedFiles: []string{}, Failed: []string{}}, nil
}

type fakeRetrieval struct {
	gotOrg *uint
}

func (f *fakeRetrieval) Retrieve(_ context.Context, _ string, org *uint) []model.DocumentResult {
	f.gotOrg = org
	return []model.DocumentResult{{DocumentID: "d1", Filename: "a.txt", Chunks: []string{"c"}, Relevance: 0.8}}
}

type fakeChat struct{}

func (fakeChat) Answer(_ context.Context, query string, _ *uint) *model.ChatAnswer {
	return &model.ChatAnswer{Response: "echo: " + query, Confidence: 0.5}
}

func (fakeChat) StreamAnswer(_ context.Context, query string, _ *uint, w llm.MessageWriter) *model.ChatAnswer {
	_ = w.WriteMessage(websocket.TextMessage, []byte("echo: "))
	_ = w.WriteMessage(websocket.TextMessage, []byte(query))
	return &model.ChatAnswer{Response: "echo: " + query, Sources: []model.Source{{DocumentID: "d1"}}, Confidence: 0.5, ChunksFound: 1}
}

type staticIndex struct{ status string }

func (s staticIndex) Stats(context.Context) index.Stats { return index.Stats{Status: s.status} }

type testEnv struct {
	router    *gin.Engine
	jwt       *token.JWTManager
	docs      *fakeDocs
	retrieval *fakeRetrieval
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	jwt := token.NewJWTManager("secret", 1)
	docs := &fakeDocs{}
	retrieval := &fakeRetrieval{}
	router := NewRouter(Handlers{
		Document: NewDocumentHandler(docs),
		Search:   NewSearchHandler(retrieval),
		Chat:     NewChatHandler(fakeChat{}, jwt),
		System:   NewSystemHandler(docs, staticIndex{status: "unavailable"}),
	}, jwt)
	return &testEnv{router: router, jwt: jwt, docs: docs, retrieval: retrieval}
}

func (e *testEnv) token(t *testing.T, role string, org uint) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(1, "tester", role, org)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, req *http.Request, tok string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealthIsPublic(t *testing.T) {
	env := newEnv(t)
	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "unavailable", body["vector_db"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newEnv(t)
	w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearch(t *testing.T) {
	env := newEnv(t)

	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/search?query=injuries", nil), env.token(t, "USER", 3))

	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Len(t, data["results"], 1)
	assert.InDelta(t, 0.8, data["confidence"], 1e-9)
	require.NotNil(t, env.retrieval.gotOrg)
	assert.Equal(t, uint(3), *env.retrieval.gotOrg)

	w, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/search?query=", nil), env.token(t, "USER", 3))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func uploadRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	env := newEnv(t)

	w, body := env.do(t, uploadRequest(t, "notes.txt", "text/plain", []byte("hello.")), env.token(t, "USER", 2))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "new-id", body["data"].(map[string]interface{})["id"])
	require.Len(t, env.docs.uploaded, 1)
	assert.Equal(t, "notes.txt", env.docs.uploaded[0].Filename)
	assert.Equal(t, "text/plain", env.docs.uploaded[0].ContentType)
	assert.Equal(t, []byte("hello."), env.docs.uploaded[0].Data)
	assert.Equal(t, uint(2), env.docs.uploadOrg)
}

func TestUpload_Errors(t *testing.T) {
	env := newEnv(t)
	tok := env.token(t, "USER", 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", strings.NewReader(""))
	w, _ := env.do(t, req, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.docs.uploadErr = service.ErrUnsupportedType
	w, _ = env.do(t, uploadRequest(t, "a.png", "image/png", []byte{1}), tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete_StatusMapping(t *testing.T) {
	env := newEnv(t)
	tok := env.token(t, "USER", 1)

	cases := map[error]int{
		nil:                         http.StatusOK,
		service.ErrDocumentNotFound: http.StatusNotFound,
		service.ErrForbidden:        http.StatusForbidden,
		errors.New("db down"):       http.StatusInternalServerError,
	}
	for err, want := range cases {
		env.docs.deleteErr = err
		w, _ := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/abc", nil), tok)
		assert.Equal(t, want, w.Code, "%v", err)
	}
}

func TestListAndStats(t *testing.T) {
	env := newEnv(t)
	tok := env.token(t, "USER", 6)

	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 1)

	w, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/stats/organization", nil), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 6, body["data"].(map[string]interface{})["organization_id"])

	w, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/system/stats", nil), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operational", body["data"].(map[string]interface{})["vector_db_status"])
}

func TestChat(t *testing.T) {
	env := newEnv(t)
	tok := env.token(t, "USER", 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"how many injuries?"}`))
	req.Header.Set("Content-Type", "application/json")
	w, body := env.do(t, req, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "echo: how many injuries?", body["data"].(map[string]interface{})["response"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w, _ = env.do(t, req, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReindexRequiresAdmin(t *testing.T) {
	env := newEnv(t)

	w, _ := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/system/reindex", nil), env.token(t, "USER", 1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/system/reindex?organization_id=4", nil), env.token(t, "ADMIN", 1))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.docs.reindexed, 1)
	require.NotNil(t, env.docs.reindexed[0])
	assert.Equal(t, uint(4), *env.docs.reindexed[0])

	w, _ = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/system/reindex?organization_id=x", nil), env.token(t, "ADMIN", 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCleanupRequiresAdmin(t *testing.T) {
	env := newEnv(t)

	w, _ := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/system/cleanup", nil), env.token(t, "USER", 1))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, env.docs.cleanups)

	w, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/system/cleanup", nil), env.token(t, "ADMIN", 1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.docs.cleanups)
	assert.Equal(t, []interface{}{"gone"}, body["data"].(map[string]interface{})["orphaned_chunks"])
}

func TestStreamOverWebsocket(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws/" + env.token(t, "USER", 1)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("injuries")))

	var frames []map[string]interface{}
	for len(frames) < 3 {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(msg, &frame))
		frames = append(frames, frame)
	}
	assert.Equal(t, "echo: ", frames[0]["chunk"])
	assert.Equal(t, "injuries", frames[1]["chunk"])
	assert.Equal(t, "completion", frames[2]["type"])
	assert.InDelta(t, 0.5, frames[2]["confidence"], 1e-9)
}

func TestStreamRejectsBadToken(t *testing.T) {
	env := newEnv(t)
	w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws/bad", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
