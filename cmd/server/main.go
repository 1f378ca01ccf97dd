package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"

	"github.com/bassista/go_dbproxy/internal/api/middleware"
	route "github.com/bassista/go_dbproxy/internal/api/route"
	appctx "github.com/bassista/go_dbproxy/internal/app"
	"github.com/bassista/go_dbproxy/internal/config"
	"github.com/bassista/go_dbproxy/internal/logger"
	"github.com/bassista/go_dbproxy/internal/proxy"
)

func main() {
	confPath := flag.String("config", "./config", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', keeping '%s': %v", cfg.Misc.LogLevel, logger.Logger.GetLevel(), err)
	}
	logger.WithComponent("main").Infof("App will run on port: %d", cfg.Server.Port)

	app, err := appctx.Bootstrap(context.Background(), cfg)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	p := app.Repo.Proxy()
	if p.Encrypted() {
		logger.WithComponent("main").Infof("data file obfuscation enabled (%s)", p.Cipher())
	}
	p.On(proxy.EventSave, func(any) {
		logger.WithComponent("proxy").Debug("records saved")
	})
	p.On(proxy.EventFetch, func(any) {
		logger.WithComponent("proxy").Debug("records fetched")
	})

	if err := app.StartWatchers(); err != nil {
		logger.WithComponent("main").Fatalf("cannot start watchers: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.HoneybadgerMiddleware(os.Getenv("HONEYBADGER_API_KEY"), os.Getenv("GO_ENV"), logger.Logger))
	route.SetupRoutes(r, app)

	srv := createGraceHttpServer(app.BaseCtx, "main-server", cfg.Server, r)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Error(err)
	}
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
}
