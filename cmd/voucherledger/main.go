package main

import (
	"go.uber.org/fx"

	"voucherledger/pkg/config"
	"voucherledger/pkg/gen"
	"voucherledger/pkg/health"
	"voucherledger/pkg/logger"
	"voucherledger/pkg/redis"
	"voucherledger/pkg/server"
	"voucherledger/pkg/task"
	"voucherledger/services/account"
	"voucherledger/services/voucher"
	vouchertask "voucherledger/services/voucher/task"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		gen.Module,
		redis.Module,
		task.Client,
		task.Server,
		server.Module,
		health.Module,
		account.Module,
		voucher.Module,
		vouchertask.Module,
	)

	app.Run()
}
