package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/fx"

	"github.com/tigerroll/yotposync/internal/app"
	_ "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm/sqlite"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp := fx.New(app.Options(ctx, envFilePath, embeddedConfig)...)

	startCtx, cancelStart := context.WithTimeout(context.Background(), fxApp.StartTimeout())
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		logger.Fatalf("Application start failed: %v", err)
	}

	var exitCode int
	select {
	case sig := <-fxApp.Wait():
		exitCode = sig.ExitCode
	case <-ctx.Done():
		logger.Warnf("Received shutdown signal. Stopping the job...")
		sig := <-fxApp.Wait()
		exitCode = sig.ExitCode
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		logger.Errorf("Application stop failed: %v", err)
	}
	os.Exit(exitCode)
}
