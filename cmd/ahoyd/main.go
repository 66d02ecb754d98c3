// Command ahoyd serves the charter marketplace proxy API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/app"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/buildinfo"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to the YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.ServiceName)
	slog.SetDefault(logger)

	rt, err := app.NewRuntime(cfg, logger)
	if err != nil {
		logger.Error("init runtime", "error", err)
		os.Exit(1)
	}
	if err := rt.Run(context.Background()); err != nil {
		logger.Error("runtime stopped", "error", err)
		os.Exit(1)
	}
}
