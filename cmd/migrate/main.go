// Command migrate applies or rolls back the embedded schema.
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kharcha-app/kharcha/internal/config"
	"github.com/kharcha-app/kharcha/internal/infra"
	"github.com/kharcha-app/kharcha/internal/logging"
)

const usage = "usage: migrate up|down [steps]|version"

var errUsage = errors.New(usage)

type command struct {
	name  string
	steps int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code so deferred cleanup always runs.
func run(args []string, stderr io.Writer) int {
	cmd, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.LoadForMigrations()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	m, err := infra.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open migrator", "error", err)
		return 1
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", "error", err)
		}
	}()

	switch cmd.name {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down(cmd.steps)
	}
	if err != nil {
		logger.Error("migrate "+cmd.name, "error", err)
		return 1
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Error("read version", "error", err)
		return 1
	}
	logger.Info("schema version", "version", version, "dirty", dirty)
	return 0
}

func parseArgs(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errUsage
	}
	cmd := command{name: args[0], steps: 1}
	switch cmd.name {
	case "up", "version":
		if len(args) > 1 {
			return command{}, errUsage
		}
	case "down":
		if len(args) > 2 {
			return command{}, errUsage
		}
		if len(args) == 2 {
			steps, err := strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				return command{}, fmt.Errorf("invalid steps %q: %w", args[1], errUsage)
			}
			cmd.steps = steps
		}
	default:
		return command{}, fmt.Errorf("unknown command %q: %w", cmd.name, errUsage)
	}
	return cmd, nil
}
