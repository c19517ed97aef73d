package observability

import (
	"github.com/danmuck/rpcscope/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logging profile, applies level when it
// names a known level, and installs a global logger tagged with app.
func InitLogger(app, level string) zerolog.Logger {
	logging.ConfigureRuntime()
	logging.SetLevel(level)
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
