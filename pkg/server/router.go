package server

import (
	"voucherledger/pkg/config"
	"voucherledger/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the shared gin engine. Feature modules register their own
// routes on it via fx.Invoke.
func NewRouter(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Error())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
