package controllers

import (
	"context"
	"net/http"
	"sort"

	"github.com/angelmondragon/taxsync/api/responses"
	"github.com/angelmondragon/taxsync/pkg/config"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

const envHeader = "X-Taxsync-Env"

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and reports 503 if any fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		checks := make(map[string]string, len(deps))
		var failed []string
		for _, name := range names {
			if err := deps[name].Ping(r.Context()); err != nil {
				checks[name] = err.Error()
				failed = append(failed, name)
				continue
			}
			checks[name] = "ok"
		}
		if len(failed) > 0 {
			err := pkgerrors.New(pkgerrors.CodeServiceUnavailable, "dependencies unavailable").
				WithDetails(map[string]any{"checks": checks, "failed": failed})
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
