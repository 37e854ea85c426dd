// Package server wires the identity service stand-in together: in-memory
// account and token storage, the users service, and the HTTP API, with
// graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/primeauth/internal/logging"
	"github.com/dmitrijs2005/primeauth/internal/server/config"
	"github.com/dmitrijs2005/primeauth/internal/server/httpapi"
	"github.com/dmitrijs2005/primeauth/internal/server/refreshtokens"
	"github.com/dmitrijs2005/primeauth/internal/server/users"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	userService *users.Service
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	us := users.NewService(
		users.NewMemoryRepository(),
		refreshtokens.NewMemoryRepository(),
		users.NewLogSender(logger),
		logger,
		c,
	)

	return &App{config: c, logger: logger, userService: us}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddr, app.logger, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
