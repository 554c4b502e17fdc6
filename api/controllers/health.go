package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/pkg/config"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const readinessTimeout = 2 * time.Second

const envHeader = "X-StockLedger-Env"

// Pinger is satisfied by the db and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BacklogCounter reports how many outbox events still await publishing.
type BacklogCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// ReadinessChecks lists the dependencies pinged by /health/ready. Nil entries are skipped.
type ReadinessChecks struct {
	DB     Pinger
	Redis  Pinger
	Outbox BacklogCounter
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		failed := false
		check := func(name string, p Pinger) {
			if p == nil {
				return
			}
			if err := p.Ping(ctx); err != nil {
				status[name] = "down"
				failed = true
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				return
			}
			status[name] = "up"
		}
		check("db", checks.DB)
		check("redis", checks.Redis)

		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(status))
			return
		}

		payload := map[string]any{"status": "ready", "checks": status}
		if checks.Outbox != nil {
			if pending, err := checks.Outbox.CountPending(ctx); err == nil {
				payload["outboxPending"] = pending
			} else if logg != nil {
				logg.Warn(ctx, "outbox backlog unavailable for readiness")
			}
		}
		responses.WriteSuccess(w, payload)
	}
}
