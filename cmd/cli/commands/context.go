package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/ilford-drop-in/internal/config"
	"github.com/jakechorley/ilford-drop-in/pkg/learning"
	"github.com/jakechorley/ilford-drop-in/pkg/metrics"
	"github.com/jakechorley/ilford-drop-in/pkg/notify/gmail"
	"github.com/jakechorley/ilford-drop-in/pkg/store"
)

// AppContext holds the application dependencies shared across all commands.
type AppContext struct {
	Cfg      *config.Config
	Store    store.Store
	Learning learning.Service
	Notifier *gmail.Client // nil when notify.enabled is false
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Ctx      context.Context
}
