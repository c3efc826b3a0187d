package main

import (
	"fmt"
	"log/slog"

	"github.com/umbralabs/twophase/internal/logging"
	"github.com/umbralabs/twophase/internal/logging/writers"
	"github.com/urfave/cli/v3"
)

// setupLogger builds a slog handler from the root command's log flags and
// installs it as the process default.
func setupLogger(cmd *cli.Command) (slog.Handler, error) {
	root := cmd.Root()

	writer, err := writers.Resolve(root.String("log-output"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log output: %w", err)
	}

	handler, err := logging.NewHandler(
		logging.Format(root.String("log-format")),
		root.String("log-level"),
		writer,
	)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(handler))
	return handler, nil
}
