package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		cmdServe(args)
	case "start":
		cmdStart(args)
	case "stop":
		cmdStop(args)
	case "restart":
		cmdRestart(args)
	case "status":
		cmdStatus(args)
	case "update":
		cmdUpdate(args)
	case "version", "--version":
		cmdVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// cmdServe runs the bot in the foreground until SIGINT/SIGTERM.
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file path")
	fs.Parse(args)

	if err := serve(*configPath); err != nil {
		fatalf("Error: %v", err)
	}
}

func serve(configPath string) error {
	if env := loadDotEnv("."); env != "" {
		fmt.Fprintf(os.Stderr, "loaded %s\n", env)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	settings, err := openBotSettings(cfg.dataPath("bot_setting.json"))
	if err != nil {
		return err
	}
	defaultLogger = initLogger(cfg.Logging, settings.LogDir())
	defer defaultLogger.Close()

	notifications, err := openNotificationStore(cfg.dataPath("notification.json"))
	if err != nil {
		return err
	}
	if err := claimPID(cfg.pidFilePath(), os.Getpid()); err != nil {
		logWarn("pid file", "path", cfg.pidFilePath(), "error", err)
	}
	defer releasePID(cfg.pidFilePath(), os.Getpid())
	cliConfigPath = configPath

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go reloadOnHangup(ctx, settings)

	bot := newBot(cfg, settings, notifications)
	startOpsServer(ctx, cfg.HTTP.Addr, opsRouter(bot, time.Now()))

	logInfo("cogbot starting", "version", cogbotVersion, "timezone", cfg.Timezone, "settings", settings.Path(), "notifications", notifications.store.path)
	if err := bot.Run(ctx); err != nil {
		logError("bot stopped with error", "error", err)
		return err
	}
	logInfo("cogbot stopped")
	return nil
}

// reloadOnHangup re-reads bot_setting.json on SIGHUP.
func reloadOnHangup(ctx context.Context, settings *BotSettings) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if err := settings.Reload(); err != nil {
				logError("settings reload failed", "error", err)
				continue
			}
			logInfo("settings reloaded", "path", settings.Path())
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
