package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/knowledge"
	"github.com/cginside/hobi/internal/router"
	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/pkg/logging"
)

// historyLimit is how many stored messages feed a request; the agent and
// router window it down further.
const historyLimit = 20

// AgentSource hands out the cached tool-calling agent.
type AgentSource interface {
	Get(ctx context.Context) (*agent.Agent, error)
	Invalidate()
}

// RoutePipeline is the classify-then-dispatch answering pipeline.
type RoutePipeline interface {
	ClassifyAndRoute(ctx context.Context, question string, history []agent.Turn) (router.Response, error)
	ClassifyAndRouteStream(ctx context.Context, question string, history []agent.Turn, emit func(agent.StreamEvent) error) error
}

// HistoryStore persists conversation history.
type HistoryStore interface {
	Recent(ctx context.Context, conversationID string, limit int) ([]agent.Turn, error)
	Append(ctx context.Context, conversationID, role, content string) error
	Clear(ctx context.Context, conversationID string) error
}

// SettingsStore reads and merges runtime settings.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, patch map[string]json.RawMessage) (settings.Settings, error)
}

// DocumentStore persists knowledge base documents.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc knowledge.Document) error
	GetDocument(ctx context.Context, id string) (knowledge.Document, error)
	ListDocuments(ctx context.Context) ([]knowledge.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountChunks(ctx context.Context, documentID string) (int, error)
}

// Indexer re-embeds documents into the search index.
type Indexer interface {
	EmbedAndStoreDocument(ctx context.Context, documentID, title, content string) (int, error)
	RebuildAll(ctx context.Context) (int, error)
}

type Handler struct {
	Agent     AgentSource
	Pipeline  RoutePipeline
	History   HistoryStore
	Settings  SettingsStore
	Documents DocumentStore
	Indexer   Indexer
	Logger    logging.Logger
	AdminKey  string
}

// RegisterRoutes mounts all endpoints under /api/npc.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	npc := r.Group("/api/npc")
	npc.POST("/chat", h.HandleChat)
	npc.POST("/chat/stream", h.HandleChatStream)
	npc.DELETE("/chat/history", h.HandleClearHistory)
	npc.GET("/settings", h.HandleGetSettings)
	npc.PUT("/settings", h.HandleUpdateSettings)

	docs := npc.Group("/documents", h.requireAdmin)
	docs.GET("", h.HandleListDocuments)
	docs.GET("/:id", h.HandleGetDocument)
	docs.POST("", h.HandleCreateDocument)
	docs.PUT("/:id", h.HandleUpdateDocument)
	docs.DELETE("/:id", h.HandleDeleteDocument)
	docs.POST("/reindex", h.HandleReindex)
}

// requireAdmin gates document administration behind the configured API key.
// An unset key leaves the endpoints open for local development.
func (h *Handler) requireAdmin(c *gin.Context) {
	if h.AdminKey == "" {
		c.Next()
		return
	}
	if c.GetHeader("X-Admin-Key") != h.AdminKey {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "관리자 권한이 필요합니다."})
		return
	}
	c.Next()
}
