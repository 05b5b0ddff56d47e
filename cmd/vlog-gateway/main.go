package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/account"
	"github.com/aisgo/vlog-gateway/api"
	"github.com/aisgo/vlog-gateway/cache"
	"github.com/aisgo/vlog-gateway/challenge"
	"github.com/aisgo/vlog-gateway/conf"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/proxy"
	"github.com/aisgo/vlog-gateway/retry"
	"github.com/aisgo/vlog-gateway/shutdown"
	httpserver "github.com/aisgo/vlog-gateway/transport/http"
	"github.com/aisgo/vlog-gateway/transport/upstream"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "./configs", "directory containing config.yaml (optional)")
	flag.Parse()

	cfg, err := conf.LoadApp(conf.NewGatewayLoader(*configDir, "config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vlog-gateway: %v\n", err)
		return 1
	}

	var mgr *shutdown.Manager
	app := fx.New(
		conf.Module(cfg),
		fx.Provide(logger.NewLogger),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		cache.Module,
		upstream.Module,
		api.Module,
		retry.Module,
		challenge.Module,
		httpserver.Module,
		proxy.Module,
		account.Module,
		shutdown.Module,
		fx.Populate(&mgr),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "vlog-gateway: start: %v\n", err)
		return 1
	}

	mgr.RegisterApp(app)
	mgr.Wait()
	return 0
}
