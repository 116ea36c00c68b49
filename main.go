package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/meepleboard/meeple/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main sets the log level from DEBUG_MEEPLE, starts the interrupt
// listener, and runs the CLI.
func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_MEEPLE is set
// to anything other than "", "0" or "false". Otherwise logging is off.
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_MEEPLE") {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt cancels in-flight requests on the first interrupt and
// exits with status 1.
func handleInterrupt(stopChan chan os.Signal, cancel context.CancelFunc, logMsg func(string), exit func(int)) {
	<-stopChan
	cancel()
	logMsg("Interrupt signal received. Exiting...")
	exit(1)
}
