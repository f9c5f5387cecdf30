package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/background"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/tagging"
	"github.com/starford/notegraph/internal/testutil"
)

type fixture struct {
	svc    *noteservice.Service
	router http.Handler
	alpha  *models.Note
	beta   *models.Note
}

// testEnv sets up a temp notes directory with two linked notes, an index,
// the service and the router. An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) fixture {
	t.Helper()
	return testEnvFull(t, authToken, nil, nil)
}

func testEnvFull(t *testing.T, authToken string, runner *background.Runner, events http.Handler) fixture {
	t.Helper()

	notes := testutil.TestNotes(t)
	db := testutil.TestDB(t, index.WithLocator(notes))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := noteservice.NewService(notes, db, tagging.Tagger{}, 0, logger)

	beta := testutil.SaveNote(t, notes, 0, "Beta", "# Beta\n\n## Plan\nship the Alpha release\n\n- [ ] write docs\n- [x] cut branch", "work")
	alpha := testutil.SaveNote(t, notes, 1, "Alpha", "Depends on [[Beta#Plan]] and [[Gamma]].\nSecond line.")

	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	router := NewRouter(svc, runner, authToken != "", authToken, events)
	return fixture{svc: svc, router: router, alpha: alpha, beta: beta}
}

func do(t *testing.T, router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestListNotes(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[NoteListResponse](t, w)
	if resp.Total != 2 || len(resp.Notes) != 2 {
		t.Fatalf("list = %+v", resp)
	}
	// Newest modified first.
	if resp.Notes[0].ID != env.alpha.ID {
		t.Errorf("first = %q, want %q", resp.Notes[0].ID, env.alpha.ID)
	}

	w = do(t, env.router, http.MethodGet, "/notes?tag=work&sort=title", nil)
	resp = decode[NoteListResponse](t, w)
	if resp.Total != 1 || resp.Notes[0].ID != env.beta.ID {
		t.Errorf("tag filter = %+v", resp)
	}

	w = do(t, env.router, http.MethodGet, "/notes?plain=maybe", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad plain = %d, want 400", w.Code)
	}
}

func TestGetNote_ByIDTitleAndPath(t *testing.T) {
	env := testEnv(t, "")

	for _, ref := range []string{env.beta.ID, "Beta", url.PathEscape(env.beta.FilePath)} {
		w := do(t, env.router, http.MethodGet, "/notes/"+ref, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %q status = %d, body = %s", ref, w.Code, w.Body.String())
		}
		d := decode[NoteDetail](t, w)
		if d.ID != env.beta.ID || len(d.Backlinks) != 1 || d.Backlinks[0].SourceID != env.alpha.ID {
			t.Errorf("GET %q = %+v", ref, d)
		}
	}
}

func TestGetNote_NotFound(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/notes/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestLinkEndpoints(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/notes/"+env.alpha.ID+"/links", nil)
	out := decode[LinksResponse](t, w)
	if len(out.Links) != 2 {
		t.Fatalf("outgoing = %+v", out.Links)
	}

	w = do(t, env.router, http.MethodGet, "/notes/Beta/backlinks", nil)
	back := decode[LinksResponse](t, w)
	if len(back.Links) != 1 || back.Links[0].LinkType != models.LinkSection || back.Links[0].Section != "Plan" {
		t.Errorf("backlinks = %+v", back.Links)
	}

	w = do(t, env.router, http.MethodGet, "/broken", nil)
	broken := decode[LinksResponse](t, w)
	if len(broken.Links) != 1 || broken.Links[0].TargetID != "Gamma" {
		t.Errorf("broken = %+v", broken.Links)
	}

	w = do(t, env.router, http.MethodGet, "/notes/Alpha/anchors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("anchors status = %d", w.Code)
	}
	if anchors := decode[AnchorsResponse](t, w); len(anchors.Problems) != 0 {
		t.Errorf("anchors = %+v", anchors.Problems)
	}

	w = do(t, env.router, http.MethodGet, "/notes/Alpha/mentions", nil)
	if m := decode[MentionsResponse](t, w); len(m.Mentions) != 1 || m.Mentions[0].SourceID != env.beta.ID {
		t.Errorf("mentions = %+v", m.Mentions)
	}
}

func TestStructureEndpoints(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/notes/Beta/toc", nil)
	if toc := decode[TextResponse](t, w); toc.Text != "1. Beta\n  2. Plan" {
		t.Errorf("toc = %q", toc.Text)
	}

	w = do(t, env.router, http.MethodGet, "/notes/Beta/sections/plan", nil)
	if sec := decode[TextResponse](t, w); !strings.HasPrefix(sec.Text, "## Plan\nship the Alpha release") {
		t.Errorf("section = %q", sec.Text)
	}

	w = do(t, env.router, http.MethodGet, "/notes/Beta/sections/budget", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing section = %d, want 404", w.Code)
	}
}

func TestAddBlock(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodPost, "/notes/Alpha/blocks", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing line = %d, want 400", w.Code)
	}
	w = do(t, env.router, http.MethodPost, "/notes/Alpha/blocks", []byte(`{"line":-2}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative line = %d, want 400", w.Code)
	}
	w = do(t, env.router, http.MethodPost, "/notes/Alpha/blocks", []byte(`{"line":99}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out of range line = %d, want 400", w.Code)
	}

	w = do(t, env.router, http.MethodPost, "/notes/Alpha/blocks", []byte(`{"line":1}`))
	if w.Code != http.StatusOK {
		t.Fatalf("add block = %d, body = %s", w.Code, w.Body.String())
	}
	added := decode[AddBlockResponse](t, w)

	w = do(t, env.router, http.MethodGet, "/notes/Alpha/blocks", nil)
	blocks := decode[BlocksResponse](t, w)
	if len(blocks.Blocks) != 1 || blocks.Blocks[0].ID != added.BlockID || blocks.Blocks[0].Line != 1 {
		t.Errorf("blocks = %+v, added %q", blocks.Blocks, added.BlockID)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/search?q=release", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Beta" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = do(t, env.router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/graph", nil)
	resp := decode[GraphResponse](t, w)
	if len(resp.Nodes) != 2 || len(resp.Links) != 1 {
		t.Errorf("graph = %+v", resp)
	}
	if len(resp.Links) == 1 && (resp.Links[0].Source != env.alpha.ID || resp.Links[0].Target != env.beta.ID) {
		t.Errorf("link = %+v", resp.Links[0])
	}
}

func TestResolveAndFollow(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/resolve?target=beta", nil)
	res := decode[ResolveResponse](t, w)
	if !res.Found || res.Note == nil || res.Note.ID != env.beta.ID {
		t.Errorf("resolve = %+v", res)
	}

	w = do(t, env.router, http.MethodGet, "/resolve?target=Gamma", nil)
	if res := decode[ResolveResponse](t, w); res.Found || res.Note != nil {
		t.Errorf("unresolved = %+v", res)
	}

	w = do(t, env.router, http.MethodGet, "/resolve", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("resolve without target = %d, want 400", w.Code)
	}

	q := url.Values{"link": {"[[Beta#Plan]]"}}
	w = do(t, env.router, http.MethodGet, "/follow?"+q.Encode(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("follow = %d, body = %s", w.Code, w.Body.String())
	}
	var followed struct {
		Target  models.NoteRef `json:"target"`
		Content string         `json:"content"`
	}
	if err := json.NewDecoder(w.Body).Decode(&followed); err != nil {
		t.Fatal(err)
	}
	if followed.Target.ID != env.beta.ID || !strings.Contains(followed.Content, "ship the Alpha release") {
		t.Errorf("followed = %+v", followed)
	}

	q = url.Values{"link": {"[[Zeta]]"}}
	if w := do(t, env.router, http.MethodGet, "/follow?"+q.Encode(), nil); w.Code != http.StatusNotFound {
		t.Errorf("follow unresolved = %d, want 404", w.Code)
	}
	q = url.Values{"link": {"[[broken"}}
	if w := do(t, env.router, http.MethodGet, "/follow?"+q.Encode(), nil); w.Code != http.StatusBadRequest {
		t.Errorf("follow malformed = %d, want 400", w.Code)
	}
}

func TestTodoEndpoints(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/todos?completed=false", nil)
	todos := decode[TodosResponse](t, w)
	if len(todos.Todos) != 1 || todos.Todos[0].Task != "write docs" {
		t.Errorf("open todos = %+v", todos.Todos)
	}

	w = do(t, env.router, http.MethodGet, "/todos/counts", nil)
	if c := decode[TodoCountsResponse](t, w); c.Open != 1 || c.Done != 1 {
		t.Errorf("counts = %+v", c)
	}
}

func TestFoldersEndpoint(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodGet, "/folders", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[FoldersResponse](t, w); resp.Folders == nil {
		t.Error("folders should be an empty list, not null")
	}
}

func TestRebuild_Background(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	runner := background.NewRunner(context.Background(), logger)
	env := testEnvFull(t, "", runner, nil)

	w := do(t, env.router, http.MethodPost, "/rebuild", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("rebuild = %d, want 202", w.Code)
	}
	if task := decode[TaskResponse](t, w); task.TaskID == "" {
		t.Error("missing task id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !runner.Wait(ctx) {
		t.Fatal("rebuild did not finish")
	}

	w = do(t, env.router, http.MethodGet, "/notes", nil)
	if resp := decode[NoteListResponse](t, w); resp.Total != 2 {
		t.Errorf("after rebuild total = %d", resp.Total)
	}
}

func TestRebuild_Inline(t *testing.T) {
	env := testEnv(t, "")

	w := do(t, env.router, http.MethodPost, "/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild = %d", w.Code)
	}
	if resp := decode[map[string]int](t, w); resp["indexed"] != 2 {
		t.Errorf("indexed = %v", resp)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := testEnv(t, "secret123")

	w := do(t, env.router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	env := testEnv(t, "secret123")

	if w := do(t, env.router, http.MethodGet, "/notes?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("query token GET = %d, want 200", w.Code)
	}
	if w := do(t, env.router, http.MethodPost, "/reindex?access_token=secret123", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token POST = %d, want 401", w.Code)
	}
}

// eventsStub writes SSE headers and blocks until the request is done.
var eventsStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestEvents_AuthProtected(t *testing.T) {
	env := testEnvFull(t, "secret", nil, eventsStub)

	w := do(t, env.router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("events no auth = %d, want 401", w.Code)
	}
}

func TestEvents_ValidToken(t *testing.T) {
	env := testEnvFull(t, "tok", nil, eventsStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("events with valid token = %d, want 200", w.Code)
	}
}

func TestEvents_NotMounted(t *testing.T) {
	env := testEnv(t, "")

	if w := do(t, env.router, http.MethodGet, "/events", nil); w.Code != http.StatusNotFound {
		t.Errorf("events without broker = %d, want 404", w.Code)
	}
}
