package voucher

import (
	"voucherledger/pkg/config"
	"voucherledger/services/account"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("voucher.service",
	fx.Provide(
		provideGenerator,
		provideStore,
		NewLimiter,
		provideEnqueuer,
		provideEngine,
		NewService,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

func provideGenerator(cfg *config.Config) *Generator {
	return NewGenerator(cfg.Security.CodeSecret)
}

func provideStore(rdb *redis.Client) Store {
	return NewRedisStore(rdb)
}

func provideEnqueuer(client *asynq.Client) ReconcileEnqueuer {
	return &AsynqEnqueuer{Client: client}
}

type engineParams struct {
	fx.In
	Store     Store
	Accounts  account.Client
	Limiter   *Limiter
	Generator *Generator
	Node      *snowflake.Node
	Reconcile ReconcileEnqueuer
}

func provideEngine(p engineParams) *Engine {
	return NewEngine(p.Store, p.Accounts, p.Limiter, p.Generator, p.Node, p.Reconcile)
}

func registerRoutes(r *gin.Engine, h *Handler) {
	h.Register(r)
}
