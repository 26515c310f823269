package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/wikipress/internal/docservice"
	"github.com/starford/wikipress/internal/pipeline"
	"github.com/starford/wikipress/internal/storage"
	"github.com/starford/wikipress/internal/testutil"
	"github.com/starford/wikipress/internal/wikilink"
)

var testFiles = map[string]string{
	"notes/today.md":  "---\ntitle: Today\ntags: #work, #home\n---\nSee ![[chart.png]] and [[index]].",
	"index.md":        "Go to [[today]] or [[missing|Elsewhere]].",
	"files/chart.png": "PNG",
}

// testEnv sets up a content tree, builder, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*pipeline.Builder, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*pipeline.Builder, http.Handler) {
	t.Helper()

	src, err := storage.NewFS(testutil.ContentTree(t, testFiles))
	require.NoError(t, err)
	out, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	b := pipeline.New(src, out)
	svc := docservice.NewService(b, nil)
	return b, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var data []byte
	if body != nil {
		data, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestGetDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/documents/notes/today.md", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var doc DocumentDetail
	decode(t, w, &doc)
	assert.Equal(t, "Today", doc.Title)
	assert.Equal(t, "See ![chart.png]({static}/files/chart.png) and [index]({filename}/index.md).", doc.Markdown)
	assert.Equal(t, []string{"work", "home"}, doc.Tags)
	assert.Len(t, doc.References, 2)
}

func TestGetDocument_EncodedSlash(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/documents/notes%2Ftoday.md", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetDocument_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/documents/nope.md", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDocument_Traversal(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/documents/..%2F..%2Fetc%2Fpasswd", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRewrite(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodPost, "/rewrite", RewriteRequest{Text: "[[today|the day]] ![[gone.png]]"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RewriteResponse
	decode(t, w, &resp)
	assert.Equal(t, "[the day]({filename}/notes/today.md) ", resp.Text)
	require.Len(t, resp.References, 2)
	assert.Equal(t, wikilink.AssetUnresolved, resp.References[0].Outcome)
	assert.Contains(t, w.Body.String(), `"outcome":"document_link"`, "outcome is encoded by name")
}

func TestRewrite_InvalidBody(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/rewrite", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolve(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/resolve?ref="+"%21%5B%5Bchart.png%5D%5D", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res ResolvedReference
	decode(t, w, &res)
	assert.Equal(t, wikilink.AssetImage, res.Outcome)
	assert.Equal(t, "/files/", res.Dir)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/resolve", nil).Code)
}

func TestNormalizeTags(t *testing.T) {
	_, router := testEnv(t, "")

	cases := []struct {
		body TagsRequest
		want []string
	}{
		{TagsRequest{FrontMatter: "title: x\ntags: #work,#home"}, []string{"work", "home"}},
		{TagsRequest{Tags: "#a, b,,"}, []string{"a", "b"}},
		{TagsRequest{Tags: []string{"x", "#y"}}, []string{"x", "y"}},
		{TagsRequest{}, []string{}},
	}
	for _, tc := range cases {
		w := do(router, http.MethodPost, "/tags", tc.body)
		require.Equal(t, http.StatusOK, w.Code)

		var resp TagsResponse
		decode(t, w, &resp)
		assert.NotNil(t, resp.Tags, "%+v", tc.body)
		assert.Equal(t, tc.want, resp.Tags, "%+v", tc.body)
	}
}

func TestReferences(t *testing.T) {
	b, router := testEnv(t, "")

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/references", nil).Code, "before build")

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/references?outcome=unresolved", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep ReferenceReport
	decode(t, w, &rep)
	require.Len(t, rep.References, 1)
	assert.Equal(t, "missing", rep.References[0].Target)
	assert.Equal(t, "index.md", rep.References[0].Source)

	rep = ReferenceReport{}
	decode(t, do(router, http.MethodGet, "/references?outcome=asset_image", nil), &rep)
	require.Len(t, rep.References, 1)
	assert.Equal(t, "chart.png", rep.References[0].Target)

	rep = ReferenceReport{}
	decode(t, do(router, http.MethodGet, "/references?limit=1", nil), &rep)
	assert.Len(t, rep.References, 1)
}

func TestReferences_BadQuery(t *testing.T) {
	_, router := testEnv(t, "")

	for _, target := range []string{"/references?outcome=bogus", "/references?limit=x"} {
		assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, target, nil).Code, target)
	}
}

func TestIndex(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/index", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var st IndexStats
	decode(t, w, &st)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 1, st.Assets)
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/index", nil).Code)
}

func TestAuthMiddleware_Token(t *testing.T) {
	_, router := testEnv(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/index", nil).Code, "no token")

	for token, want := range map[string]int{
		"wrong":  http.StatusUnauthorized,
		"secret": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/index", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, token)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub)

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/events", nil).Code)
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSSEEvents_NotMountedWithoutHandler(t *testing.T) {
	_, router := testEnv(t, "")

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/events", nil).Code)
}
