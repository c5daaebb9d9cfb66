package assistant

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/pkg/logging"
)

// Factory builds a fully wired agent for the given settings snapshot. Called
// whenever the cache has no instance for the configured chat model.
type Factory func(cfg settings.Settings) (*agent.Agent, error)

type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Cache hands out a shared agent instance keyed by the configured chat
// model. A model change in settings makes the next Get build a fresh agent;
// concurrent rebuilds for the same model are deduplicated, and readers only
// ever see a fully constructed instance.
type Cache struct {
	settings SettingsSource
	factory  Factory
	logger   logging.Logger

	group singleflight.Group

	mu    sync.RWMutex
	model string
	agent *agent.Agent
}

func NewCache(settingsSource SettingsSource, factory Factory, logger logging.Logger) *Cache {
	return &Cache{settings: settingsSource, factory: factory, logger: logger}
}

// Get returns the agent for the currently configured chat model, building it
// on first use or after a model change.
func (c *Cache) Get(ctx context.Context) (*agent.Agent, error) {
	cfg, err := c.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	if c.agent != nil && c.model == cfg.ChatModel {
		cached := c.agent
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(cfg.ChatModel, func() (any, error) {
		c.mu.RLock()
		if c.agent != nil && c.model == cfg.ChatModel {
			cached := c.agent
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		built, err := c.factory(cfg)
		if err != nil {
			return nil, err
		}
		c.logger.WithField("chat_model", cfg.ChatModel).Info("에이전트 초기화")

		c.mu.Lock()
		c.model = cfg.ChatModel
		c.agent = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*agent.Agent), nil
}

// Invalidate drops the cached instance so the next Get rebuilds from
// current settings. Called after settings updates.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.model = ""
	c.agent = nil
	c.mu.Unlock()
}
