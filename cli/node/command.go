package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dndconfig "github.com/andydunstall/dnd/pkg/config"
	"github.com/andydunstall/dnd/pkg/log"
	"github.com/andydunstall/dnd/server"
	"github.com/andydunstall/dnd/server/config"
)

// registerFlags registers the node flags on the command, returning the
// config to populate and a function to load it from the config file.
func registerFlags(cmd *cobra.Command) (*config.Config, func() error) {
	var conf config.Config

	var configPath string
	cmd.Flags().StringVar(
		&configPath,
		"config.path",
		"",
		`
YAML config file path.`,
	)

	var configExpandEnv bool
	cmd.Flags().BoolVar(
		&configExpandEnv,
		"config.expand-env",
		false,
		`
Whether to expand environment variables in the config file.

This will replaces references to ${VAR} or $VAR with the corresponding
environment variable. The replacement is case-sensitive.

References to undefined variables will be replaced with an empty string. A
default value can be given using form ${VAR:default}.`,
	)

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())

	load := func() error {
		if configPath != "" {
			if err := dndconfig.Load(&conf, configPath, configExpandEnv); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
		}

		if conf.Cluster.NodeID == "" {
			conf.Cluster.NodeID = generateNodeID()
		}
		return nil
	}

	return &conf, load
}

func runNode(conf *config.Config) {
	if err := conf.Validate(); err != nil {
		fmt.Printf("invalid config: %s\n", err.Error())
		os.Exit(1)
	}

	logger, err := log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
	if err != nil {
		fmt.Printf("failed to setup logger: %s\n", err.Error())
		os.Exit(1)
	}
	defer logger.Sync() //nolint

	if err := run(conf, logger); err != nil {
		logger.Error("failed to run node", zap.Error(err))
		os.Exit(1)
	}
}

func run(conf *config.Config, logger log.Logger) error {
	logger.Info("starting dnd node", zap.Any("conf", conf))

	s, err := server.NewServer(conf, logger)
	if err != nil {
		return err
	}

	// Termination handler.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signalCh:
			logger.Info(
				"received shutdown signal",
				zap.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.Run(ctx)
}

func generateNodeID() string {
	return uuid.New().String()[:8]
}
