package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/knowledge"
	"github.com/cginside/hobi/internal/router"
	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
)

type staticProvider struct {
	answer string
}

func (p *staticProvider) Chat(_ context.Context, _ []llm.Message, _ []llm.Tool) (llm.Response, error) {
	return llm.Response{Content: p.answer}, nil
}

func (p *staticProvider) ChatStream(_ context.Context, _ []llm.Message) (llm.Stream, error) {
	return nil, errors.New("not scripted")
}

type fakeAgentSource struct {
	agent       *agent.Agent
	err         error
	invalidated int
}

func (f *fakeAgentSource) Get(_ context.Context) (*agent.Agent, error) {
	return f.agent, f.err
}

func (f *fakeAgentSource) Invalidate() { f.invalidated++ }

type fakePipeline struct {
	resp   router.Response
	events []agent.StreamEvent
	err    error
}

func (f *fakePipeline) ClassifyAndRoute(_ context.Context, _ string, _ []agent.Turn) (router.Response, error) {
	return f.resp, f.err
}

func (f *fakePipeline) ClassifyAndRouteStream(_ context.Context, _ string, _ []agent.Turn, emit func(agent.StreamEvent) error) error {
	if f.err != nil {
		return f.err
	}
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

type savedMessage struct {
	conversationID, role, content string
}

type fakeHistory struct {
	turns   []agent.Turn
	saved   []savedMessage
	cleared []string
}

func (f *fakeHistory) Recent(_ context.Context, _ string, _ int) ([]agent.Turn, error) {
	return f.turns, nil
}

func (f *fakeHistory) Append(_ context.Context, conversationID, role, content string) error {
	f.saved = append(f.saved, savedMessage{conversationID, role, content})
	return nil
}

func (f *fakeHistory) Clear(_ context.Context, conversationID string) error {
	f.cleared = append(f.cleared, conversationID)
	return nil
}

type fakeSettingsStore struct {
	cfg       settings.Settings
	updateErr error
	patches   []map[string]json.RawMessage
}

func (f *fakeSettingsStore) Load(_ context.Context) (settings.Settings, error) {
	return f.cfg, nil
}

func (f *fakeSettingsStore) Update(_ context.Context, patch map[string]json.RawMessage) (settings.Settings, error) {
	if f.updateErr != nil {
		return settings.Settings{}, f.updateErr
	}
	f.patches = append(f.patches, patch)
	return f.cfg, nil
}

type fakeDocStore struct {
	docs    map[string]knowledge.Document
	counts  map[string]int
	deleted []string
}

func (f *fakeDocStore) UpsertDocument(_ context.Context, doc knowledge.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id string) (knowledge.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return knowledge.Document{}, errors.New("not found")
	}
	return doc, nil
}

func (f *fakeDocStore) ListDocuments(_ context.Context) ([]knowledge.Document, error) {
	var docs []knowledge.Document
	for _, doc := range f.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id string) error {
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocStore) CountChunks(_ context.Context, id string) (int, error) {
	return f.counts[id], nil
}

type fakeIndexer struct {
	count        int
	err          error
	rebuildTotal int
	indexed      []string
}

func (f *fakeIndexer) EmbedAndStoreDocument(_ context.Context, documentID, _, _ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.indexed = append(f.indexed, documentID)
	return f.count, nil
}

func (f *fakeIndexer) RebuildAll(_ context.Context) (int, error) {
	return f.rebuildTotal, f.err
}

type fixture struct {
	handler  *Handler
	engine   *gin.Engine
	history  *fakeHistory
	pipeline *fakePipeline
	agents   *fakeAgentSource
	store    *fakeSettingsStore
	docs     *fakeDocStore
	indexer  *fakeIndexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)

	reg := agent.NewRegistry()
	ag := agent.New(&staticProvider{answer: "에이전트 답변"}, reg, "시스템", logger)

	f := &fixture{
		history:  &fakeHistory{},
		pipeline: &fakePipeline{},
		agents:   &fakeAgentSource{agent: ag},
		store:    &fakeSettingsStore{cfg: settings.Defaults()},
		docs:     &fakeDocStore{docs: map[string]knowledge.Document{}, counts: map[string]int{}},
		indexer:  &fakeIndexer{count: 3, rebuildTotal: 10},
	}
	f.handler = &Handler{
		Agent:     f.agents,
		Pipeline:  f.pipeline,
		History:   f.history,
		Settings:  f.store,
		Documents: f.docs,
		Indexer:   f.indexer,
		Logger:    logger,
	}
	f.engine = gin.New()
	f.handler.RegisterRoutes(f.engine)
	return f
}

func (f *fixture) request(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestChatAgentMode(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/npc/chat", `{"message":"안녕하세요"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Answer != "에이전트 답변" || resp.Route != "llm" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ConversationID == "" {
		t.Fatalf("conversation id must be minted")
	}
	if len(f.history.saved) != 2 {
		t.Fatalf("expected user+assistant saved, got %+v", f.history.saved)
	}
	if f.history.saved[0].role != "user" || f.history.saved[1].role != "assistant" {
		t.Fatalf("unexpected save order: %+v", f.history.saved)
	}
}

func TestChatRouterMode(t *testing.T) {
	f := newFixture(t)
	f.pipeline.resp = router.Response{
		Answer: "검색 결과 (1명):\n- 전병훈 (CTO)",
		Route:  "db",
		Intent: "db",
	}

	w := f.request(t, http.MethodPost, "/api/npc/chat?mode=router", `{"message":"CTO가 누구야","conversation_id":"conv-9"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Route != "db" || resp.Intent != "db" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ConversationID != "conv-9" {
		t.Fatalf("existing conversation id must be kept, got %q", resp.ConversationID)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/npc/chat", `{"message":"   "}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "메시지를 입력해 주세요") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestChatStreamRouterMode(t *testing.T) {
	f := newFixture(t)
	f.pipeline.events = []agent.StreamEvent{
		{Type: agent.EventRouteInfo, Data: "rag"},
		{Type: agent.EventToken, Data: "연차는"},
		{Type: agent.EventToken, Data: " 15일"},
		{Type: agent.EventDone},
	}

	w := f.request(t, http.MethodPost, "/api/npc/chat/stream?mode=router", `{"message":"연차 며칠?","conversation_id":"conv-1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, `data: {"route":"rag","type":"route_info"}`) {
		t.Fatalf("missing route_info frame: %s", body)
	}
	if !strings.Contains(body, `data: {"content":"연차는","type":"token"}`) {
		t.Fatalf("missing token frame: %s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("stream must end with the sentinel: %s", body)
	}

	// Assistant answer assembled from tokens.
	last := f.history.saved[len(f.history.saved)-1]
	if last.role != "assistant" || last.content != "연차는 15일" {
		t.Fatalf("unexpected saved answer: %+v", last)
	}
}

func TestChatStreamTagResultAnswerSaved(t *testing.T) {
	f := newFixture(t)
	f.pipeline.events = []agent.StreamEvent{
		{Type: agent.EventTagResult, Result: map[string]any{"answer": "DB 답변", "route": "db"}},
	}

	w := f.request(t, http.MethodPost, "/api/npc/chat/stream?mode=router", `{"message":"CTO 누구야","conversation_id":"conv-2"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"type":"tag_result"`) {
		t.Fatalf("missing tag_result frame: %s", w.Body.String())
	}
	last := f.history.saved[len(f.history.saved)-1]
	if last.content != "DB 답변" {
		t.Fatalf("unexpected saved answer: %+v", last)
	}
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodDelete, "/api/npc/chat/history?conversation_id=conv-1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if len(f.history.cleared) != 1 || f.history.cleared[0] != "conv-1" {
		t.Fatalf("unexpected cleared list: %v", f.history.cleared)
	}
}

func TestGetSettings(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodGet, "/api/npc/settings", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	var cfg settings.Settings
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if cfg.ChatModel != settings.Defaults().ChatModel {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
}

func TestUpdateSettingsInvalidatesAgent(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPut, "/api/npc/settings", `{"chat_model":"gpt-4o"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	if len(f.store.patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(f.store.patches))
	}
	if f.agents.invalidated != 1 {
		t.Fatalf("agent cache must be invalidated after a settings update")
	}
}

func TestUpdateSettingsRejectsUnknownKey(t *testing.T) {
	f := newFixture(t)
	f.store.updateErr = errors.New(`unknown settings key "max_tokens"`)

	w := f.request(t, http.MethodPut, "/api/npc/settings", `{"max_tokens":100}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if f.agents.invalidated != 0 {
		t.Fatalf("failed update must not invalidate the cache")
	}
}

func TestCreateDocument(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/npc/documents", `{"title":"onboarding","content":"입사 안내"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "문서가 생성되었습니다. (3개 청크)") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if _, ok := f.docs.docs["onboarding.md"]; !ok {
		t.Fatalf("document not stored: %v", f.docs.docs)
	}
	if len(f.indexer.indexed) != 1 || f.indexer.indexed[0] != "onboarding.md" {
		t.Fatalf("document not indexed: %v", f.indexer.indexed)
	}
}

func TestCreateDocumentConflict(t *testing.T) {
	f := newFixture(t)
	f.docs.docs["guide.md"] = knowledge.Document{ID: "guide.md"}

	w := f.request(t, http.MethodPost, "/api/npc/documents", `{"title":"guide.md","content":"x"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCreateDocumentIndexFailureSurfaced(t *testing.T) {
	f := newFixture(t)
	f.indexer.err = errors.New("embedding api unreachable")

	w := f.request(t, http.MethodPost, "/api/npc/documents", `{"title":"doc","content":"내용"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "문서 인덱싱에 실패했습니다") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodDelete, "/api/npc/documents/missing.md", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListDocumentsTotals(t *testing.T) {
	f := newFixture(t)
	f.docs.docs["a.md"] = knowledge.Document{ID: "a.md"}
	f.docs.docs["b.md"] = knowledge.Document{ID: "b.md"}
	f.docs.counts["a.md"] = 4
	f.docs.counts["b.md"] = 6

	w := f.request(t, http.MethodGet, "/api/npc/documents", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	var resp struct {
		TotalChunks int `json:"total_chunks"`
		Files       []struct {
			Filename   string `json:"filename"`
			ChunkCount int    `json:"chunk_count"`
		} `json:"files"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.TotalChunks != 10 || len(resp.Files) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestReindex(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/npc/documents/reindex", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "재인덱싱이 완료되었습니다. (10개 청크)") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAdminKeyGuardsDocuments(t *testing.T) {
	f := newFixture(t)
	f.handler.AdminKey = "secret"

	w := f.request(t, http.MethodGet, "/api/npc/documents", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without key, got %d", w.Code)
	}

	w = f.request(t, http.MethodGet, "/api/npc/documents", "", map[string]string{"X-Admin-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
}
