package builder

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/futig/sla-consultant/internal/telegram"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// App represents the HTTP service with all its components
type App struct {
	server *http.Server
	core   *core
	logger *zap.Logger
}

// Run starts the HTTP server and blocks until a shutdown signal or a server error
func (a *App) Run() error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		a.logger.Error("Server error", zap.Error(err))
		a.core.close(context.Background())
		return err
	case sig := <-sigChan:
		a.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	return a.shutdown()
}

// shutdown stops accepting requests, then closes consultations and sinks
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down server gracefully")

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", zap.Error(err))
		a.core.close(ctx)
		return err
	}

	a.logger.Info("Closing consultations and connections")
	a.core.close(ctx)

	a.logger.Info("Application stopped gracefully")
	_ = a.logger.Sync()
	return nil
}

// BotApp runs the Telegram front end
type BotApp struct {
	bot             telegram.Bot
	core            *core
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// Run receives updates until a shutdown signal
func (a *BotApp) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.logger.Info("starting telegram bot...")
	if err := a.bot.Start(ctx); err != nil {
		a.core.close(ctx)
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	err := a.bot.Stop()
	if err != nil {
		a.logger.Error("error stopping bot", zap.Error(err))
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer closeCancel()
	a.core.close(closeCtx)

	a.logger.Info("telegram bot stopped gracefully")
	_ = a.logger.Sync()
	return err
}
