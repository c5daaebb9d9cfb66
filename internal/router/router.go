package router

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/knowledge"
	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/internal/tools"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
	"github.com/cginside/hobi/pkg/search"
)

// similarityThreshold mirrors the rag_search tool's gate: retrieval evidence
// weaker than this falls through to web search instead of answering.
const similarityThreshold = 0.35

const webAnswerSystem = `당신은 CG Inside 회사의 온보딩 도우미 NPC '호비'입니다.
아래 웹 검색 결과를 참고하여 사용자 질문에 친절하게 답변하세요.
검색 결과가 부족하면 솔직히 잘 모르겠다고 말하세요.
답변은 간결하게, 핵심만 전달하세요.`

// ProviderFactory builds an LLM provider for a concrete model and
// temperature. Overridable in tests.
type ProviderFactory func(cfg llm.Config) (llm.Provider, error)

// Response is the outcome of one routed question.
type Response struct {
	Answer  string         `json:"answer"`
	Route   string         `json:"route"`
	Intent  string         `json:"intent,omitempty"`
	Image   string         `json:"image,omitempty"`
	Sources []agent.Source `json:"sources,omitempty"`
}

type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Router classifies a question and walks the fallback chain:
// keyword precheck, then db / rag / web, with rag falling through to web when
// retrieval evidence is too weak.
type Router struct {
	settings  SettingsSource
	keyword   *tools.KeywordTool
	directory tools.DirectoryQuerier
	searcher  tools.KnowledgeSearcher
	web       search.Provider
	factory   ProviderFactory
	baseCfg   llm.Config
	logger    logging.Logger
}

type Config struct {
	Settings  SettingsSource
	Keyword   *tools.KeywordTool
	Directory tools.DirectoryQuerier
	Searcher  tools.KnowledgeSearcher
	Web       search.Provider
	Factory   ProviderFactory
	LLMConfig llm.Config // Model and Temperature are filled per call from settings
	Logger    logging.Logger
}

func New(cfg Config) *Router {
	factory := cfg.Factory
	if factory == nil {
		factory = llm.NewProvider
	}
	return &Router{
		settings:  cfg.Settings,
		keyword:   cfg.Keyword,
		directory: cfg.Directory,
		searcher:  cfg.Searcher,
		web:       cfg.Web,
		factory:   factory,
		baseCfg:   cfg.LLMConfig,
		logger:    cfg.Logger,
	}
}

// ClassifyAndRoute answers a question through the cheapest sufficient tier.
func (r *Router) ClassifyAndRoute(ctx context.Context, question string, history []agent.Turn) (Response, error) {
	if answer, image, ok := r.keyword.Precheck(question); ok {
		routesTotal.WithLabelValues("keyword").Inc()
		return Response{Answer: answer, Image: image, Route: "keyword"}, nil
	}

	c := r.classify(ctx, question, history)

	var resp Response
	var err error
	switch c.Intent {
	case "db":
		resp, err = r.routeDB(ctx, c)
	case "web":
		resp, err = r.routeWeb(ctx, question)
	default:
		resp, err = r.routeRAG(ctx, question, history)
	}
	if err != nil {
		return Response{}, err
	}
	resp.Intent = c.Intent
	routesTotal.WithLabelValues(resp.Route).Inc()
	return resp, nil
}

// ClassifyAndRouteStream mirrors ClassifyAndRoute over StreamEvents:
// keyword/db/web complete in a single tag_result frame, rag streams tokens.
func (r *Router) ClassifyAndRouteStream(ctx context.Context, question string, history []agent.Turn, emit func(agent.StreamEvent) error) error {
	if answer, image, ok := r.keyword.Precheck(question); ok {
		routesTotal.WithLabelValues("keyword").Inc()
		return emit(agent.StreamEvent{Type: agent.EventTagResult, Result: map[string]any{
			"answer": answer,
			"image":  image,
			"route":  "keyword",
		}})
	}

	c := r.classify(ctx, question, history)

	switch c.Intent {
	case "db":
		resp, err := r.routeDB(ctx, c)
		if err != nil {
			return err
		}
		routesTotal.WithLabelValues(resp.Route).Inc()
		return emit(tagResult(resp))
	case "web":
		resp, err := r.routeWeb(ctx, question)
		if err != nil {
			return err
		}
		routesTotal.WithLabelValues(resp.Route).Inc()
		return emit(tagResult(resp))
	default:
		return r.routeRAGStream(ctx, question, history, emit)
	}
}

func tagResult(resp Response) agent.StreamEvent {
	result := map[string]any{
		"answer": resp.Answer,
		"route":  resp.Route,
	}
	if resp.Image != "" {
		result["image"] = resp.Image
	}
	return agent.StreamEvent{Type: agent.EventTagResult, Result: result}
}

func (r *Router) routeDB(ctx context.Context, c classification) (Response, error) {
	answer, err := r.directory.Query(ctx, c.Table, c.Filters)
	if err != nil {
		return Response{}, err
	}
	return Response{Answer: answer, Route: "db"}, nil
}

// retrieve runs the similarity search and applies the evidence gate.
// ok is false when the question should fall through to web search.
func (r *Router) retrieve(ctx context.Context, question string, cfg settings.Settings) (results []knowledge.SearchResult, ok bool) {
	chunks, err := r.searcher.SearchSimilar(ctx, question, cfg.RetrievalK)
	if err != nil {
		r.logger.WithError(err).Warn("문서 검색 실패, 웹 검색으로 폴백")
		return nil, false
	}
	if len(chunks) == 0 {
		return nil, false
	}
	best := 0.0
	for _, chunk := range chunks {
		if chunk.Similarity > best {
			best = chunk.Similarity
		}
	}
	if best < similarityThreshold {
		r.logger.WithField("best_similarity", best).Info("유사도 미달, 웹 검색으로 폴백")
		return nil, false
	}
	return chunks, true
}

func (r *Router) routeRAG(ctx context.Context, question string, history []agent.Turn) (Response, error) {
	cfg, err := r.settings.Load(ctx)
	if err != nil {
		return Response{}, err
	}

	results, ok := r.retrieve(ctx, question, cfg)
	if !ok {
		ragGateFallthroughsTotal.Inc()
		return r.routeWeb(ctx, question)
	}

	provider, err := r.answerProvider(cfg)
	if err != nil {
		return Response{}, err
	}
	messages := buildRAGMessages(question, history, results, cfg)
	resp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		return Response{}, err
	}

	out := Response{Answer: resp.Content, Route: "rag"}
	if cfg.ShowSources {
		out.Sources = tools.BuildSources(results)
	}
	return out, nil
}

func (r *Router) routeRAGStream(ctx context.Context, question string, history []agent.Turn, emit func(agent.StreamEvent) error) error {
	cfg, err := r.settings.Load(ctx)
	if err != nil {
		return err
	}

	results, ok := r.retrieve(ctx, question, cfg)
	if !ok {
		ragGateFallthroughsTotal.Inc()
		resp, err := r.routeWeb(ctx, question)
		if err != nil {
			return err
		}
		routesTotal.WithLabelValues(resp.Route).Inc()
		return emit(tagResult(resp))
	}
	routesTotal.WithLabelValues("rag").Inc()

	if err := emit(agent.StreamEvent{Type: agent.EventRouteInfo, Data: "rag"}); err != nil {
		return err
	}
	var sources []agent.Source
	if cfg.ShowSources {
		sources = tools.BuildSources(results)
	}
	if err := emit(agent.StreamEvent{Type: agent.EventSources, Sources: sources}); err != nil {
		return err
	}

	provider, err := r.answerProvider(cfg)
	if err != nil {
		return err
	}
	stream, err := provider.ChatStream(ctx, buildRAGMessages(question, history, results, cfg))
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if token == "" {
			continue
		}
		if err := emit(agent.StreamEvent{Type: agent.EventToken, Data: token}); err != nil {
			return err
		}
	}
	return emit(agent.StreamEvent{Type: agent.EventDone})
}

// routeWeb is the last tier: external search summarized by the model. Any
// failure becomes a fixed Korean message with route "error" rather than a
// crash.
func (r *Router) routeWeb(ctx context.Context, question string) (Response, error) {
	if r.web == nil {
		return Response{Answer: "웹 검색에 실패했습니다. 잠시 후 다시 시도해 주세요.", Route: "error"}, nil
	}
	results, err := r.web.Search(ctx, question, search.Options{MaxResults: 5})
	if err != nil {
		r.logger.WithError(err).Warn("웹 검색 실패")
		return Response{Answer: "웹 검색에 실패했습니다. 잠시 후 다시 시도해 주세요.", Route: "error"}, nil
	}
	if len(results) == 0 {
		return Response{Answer: "검색 결과가 없습니다.", Route: "web"}, nil
	}

	cfg, err := r.settings.Load(ctx)
	if err != nil {
		return Response{}, err
	}
	provider, err := r.answerProvider(cfg)
	if err != nil {
		return Response{}, err
	}

	messages := []llm.Message{
		{Role: "system", Content: webAnswerSystem},
		{Role: "user", Content: fmt.Sprintf("질문: %s\n\n웹 검색 결과:\n%s", question, tools.FormatSearchResults(results))},
	}
	resp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		r.logger.WithError(err).Warn("웹 검색 요약 실패")
		return Response{Answer: "검색은 했지만 요약에 실패했습니다.", Route: "error"}, nil
	}
	return Response{Answer: resp.Content, Route: "web"}, nil
}

func buildRAGMessages(question string, history []agent.Turn, results []knowledge.SearchResult, cfg settings.Settings) []llm.Message {
	system := cfg.SystemPrompt + "\n\n컨텍스트:\n" + tools.FormatDocs(results)
	msgs := []llm.Message{{Role: "system", Content: system}}
	start := 0
	if len(history) > 4 {
		start = len(history) - 4
	}
	for _, h := range history[start:] {
		role := "assistant"
		if h.Role == "user" {
			role = "user"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: question})
}

func (r *Router) classifierProvider(ctx context.Context) (llm.Provider, error) {
	cfg, err := r.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	return r.buildProvider(cfg.ChatModel, 0)
}

func (r *Router) answerProvider(cfg settings.Settings) (llm.Provider, error) {
	return r.buildProvider(cfg.ChatModel, cfg.ChatTemperature)
}

func (r *Router) buildProvider(model string, temperature float64) (llm.Provider, error) {
	cfg := r.baseCfg
	cfg.Model = model
	cfg.Temperature = temperature
	if cfg.Provider == "" {
		cfg.Provider = llm.DetectProvider(model)
	}
	return r.factory(cfg)
}
