package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/loopwork-studio/agency-api/internal/config"
	"go.uber.org/zap"
)

// CORS returns a CORS middleware configured from the application config.
// The client portal and the agency dashboard run on different origins, so
// production deployments list both explicitly.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
		AllowOriginFunc:  originPolicy(cfg.AllowedOrigins, environment, logger),
	}
	return cors.Handler(options)
}

func originPolicy(origins []string, environment string, logger *zap.Logger) func(*http.Request, string) bool {
	devLike := environment == "development" || environment == "local" || environment == ""

	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	switch {
	case allowed["*"]:
		if !devLike {
			logger.Warn("CORS configured with wildcard origin in non-development environment",
				zap.String("environment", environment))
		}
		return func(_ *http.Request, origin string) bool { return origin != "" }
	case len(allowed) > 0:
		logger.Info("CORS configured with explicit origins", zap.Strings("origins", origins))
		return func(_ *http.Request, origin string) bool { return allowed[origin] }
	case devLike:
		logger.Info("CORS allows all origins in development mode")
		return func(_ *http.Request, origin string) bool { return origin != "" }
	default:
		// an empty AllowedOrigins would default to "*", so deny through the func
		logger.Warn("CORS configured with no allowed origins, cross-origin requests are denied",
			zap.String("environment", environment))
		return func(*http.Request, string) bool { return false }
	}
}
