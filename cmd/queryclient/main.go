package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PippiShao/IMDB/internal/client"
	"github.com/PippiShao/IMDB/internal/movie"
	"github.com/PippiShao/IMDB/internal/protocol"
	"github.com/PippiShao/IMDB/pkg/config"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
	"github.com/PippiShao/IMDB/pkg/logger"
	"github.com/PippiShao/IMDB/pkg/resilience"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "queryclient: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		groupBy    string
	)
	cmd := &cobra.Command{
		Use:   "queryclient [address] [port]",
		Short: "Query a running queryserver interactively",
		Long: `queryclient reads one query per line, sends it to the server and prints
the matching movies grouped by genre, year or type. Enter q to quit.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, args)
			if err != nil {
				return err
			}
			if groupBy != "" {
				cfg.Client.GroupBy = groupBy
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
			layout, err := movie.LayoutFor(cfg.Corpus.Format)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := client.New(cfg.Server.Addr(),
				protocol.OptionsFromConfig(cfg.Protocol, 0, 0), cfg.Client.Timeout,
				client.WithDialRetry(resilience.RetryConfig{MaxAttempts: cfg.Client.DialAttempts}))
			p := &prompt{
				querier: c,
				layout:  layout,
				groupBy: cfg.Client.GroupBy,
				in:      cmd.InOrStdin(),
				out:     cmd.OutOrStdout(),
			}
			return p.run(ctx)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "report grouping: genre, year or type")
	return cmd
}

func loadConfig(path string, args []string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		host := args[0]
		if h, p, err := net.SplitHostPort(host); err == nil && len(args) == 1 {
			host = h
			args = append(args, p)
		}
		cfg.Server.Host = host
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port <= 0 || port > 65535 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "args", "invalid port %q", args[1])
		}
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
