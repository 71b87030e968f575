package main

import (
	"fmt"
	"os"
	"runtime"
)

var cogbotVersion = "dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `cogbot v%s - cog-based Discord bot

Usage:
  cogbot <command> [--config config.yaml]

Commands:
  serve      Run the bot in the foreground
  start      Start the bot in the background (PID in <tmp_dir>/pids.txt)
  stop       Stop the background bot
  restart    Stop and start the background bot
  status     Show whether the bot is running
  update     git pull, then restart
  version    Show version

Environment:
  BOT_TOKEN  Discord bot token (also read from .env files)

`, cogbotVersion)
}

func cmdVersion() {
	fmt.Printf("cogbot v%s (%s/%s)\n", cogbotVersion, runtime.GOOS, runtime.GOARCH)
}
