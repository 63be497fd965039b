package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepakmehta1/travel-mcp-prod/internal/agent"
	"github.com/deepakmehta1/travel-mcp-prod/internal/config"
	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
	"github.com/deepakmehta1/travel-mcp-prod/internal/gateway"
	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
	"github.com/deepakmehta1/travel-mcp-prod/internal/mcpgw"
	"github.com/deepakmehta1/travel-mcp-prod/internal/oracle"
	"github.com/deepakmehta1/travel-mcp-prod/internal/store"
)

// evictInterval is how often idle sessions are swept.
const evictInterval = time.Minute

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the travel agent gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Rebuild the root logger with the configured level and style;
			// an explicit --log-level flag still wins.
			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			log = logging.NewStyled(nil, level, cfg.Logging.Style)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			seed := domain.Message{Role: domain.RoleSystem, Content: agent.SystemPrompt}

			// Session store (SQLite or in-memory)
			var sessions agent.SessionStore
			if cfg.Session.Store == "sqlite" {
				db, err := store.Open(cfg.Session.Path, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteSessionStore(db, seed)
				log.Info().Str("path", cfg.Session.Path).Msg("using SQLite session store")
			} else {
				sessions = agent.NewMemoryStore(seed)
				log.Info().Msg("using in-memory session store")
			}

			// Tool servers. Compose environments start everything at once,
			// so optionally hold off before the first handshake.
			if d := cfg.Tools.StartupDelay(); d > 0 {
				log.Info().Dur("delay", d).Msg("waiting for tool servers")
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			gw := mcpgw.New(mcpgw.Options{
				ConnectRetries: cfg.Tools.ConnectRetries,
				ConnectDelay:   cfg.Tools.ConnectDelay(),
				InvokeTimeout:  cfg.Tools.InvokeTimeout(),
				Logger:         log,
			})
			defer gw.Close()

			bookingErr := gw.Connect(ctx, "booking", cfg.Tools.BookingURL)
			paymentErr := gw.Connect(ctx, "payment", cfg.Tools.PaymentURL)
			if bookingErr != nil && paymentErr != nil {
				log.Error().Err(bookingErr).Str("server", "booking").Msg("connection failed")
				log.Error().Err(paymentErr).Str("server", "payment").Msg("connection failed")
				return fmt.Errorf("no tool server reachable")
			}
			if bookingErr != nil {
				log.Warn().Err(bookingErr).Msg("booking server unreachable — running degraded")
			}
			if paymentErr != nil {
				log.Warn().Err(paymentErr).Msg("payment server unreachable — running degraded")
			}
			log.Info().Int("tools", len(gw.Tools())).Msg("tool discovery complete")

			llm := oracle.NewOpenAIClient(oracle.OpenAIOptions{
				APIKey:  cfg.Oracle.APIKey,
				BaseURL: cfg.Oracle.BaseURL,
				Model:   cfg.Oracle.Model,
				Logger:  log,
			})

			runner := agent.New(agent.Options{
				Store:         sessions,
				Gateway:       gw,
				Oracle:        llm,
				Logger:        log,
				MaxIterations: cfg.Agent.MaxIterations,
				ChunkSize:     cfg.Agent.StreamChunkBytes,
				ChunkDelay:    time.Duration(cfg.Agent.StreamDelayMs) * time.Millisecond,
			})

			// Background sweep of idle sessions.
			maxIdle := time.Duration(cfg.Session.IdleMinutes) * time.Minute
			go func() {
				ticker := time.NewTicker(evictInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						n, err := sessions.EvictIdle(ctx, maxIdle)
						if err != nil {
							log.Error().Err(err).Msg("idle session sweep failed")
						} else if n > 0 {
							log.Info().Int("evicted", n).Msg("idle sessions removed")
						}
					}
				}
			}()

			srv := gateway.New(cfg, log, runner)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&host, "host", "", "override bind host")

	return cmd
}
