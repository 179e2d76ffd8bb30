package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/senga07/xAgentic/internal/checkpoint"
	"github.com/senga07/xAgentic/internal/engine"
	"github.com/senga07/xAgentic/internal/gateway"
	"github.com/senga07/xAgentic/internal/governance"
	"github.com/senga07/xAgentic/internal/httpapi"
	"github.com/senga07/xAgentic/internal/llm"
	"github.com/senga07/xAgentic/internal/observability"
	"github.com/senga07/xAgentic/internal/tools"
	"github.com/senga07/xAgentic/pkg/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "xagentic",
		Short: "Plan-then-execute task orchestrator",
		Long:  "xAgentic plans a task as ordered steps, executes them with a tool-using agent, and pauses for confirmation on uncertain steps.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newSessionsCommand())
	rootCmd.AddCommand(newDiscardCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildEngine wires the collaborators from config: models, tools,
// policy, checkpoint store, audit logger. The returned store must be
// closed by the caller.
func buildEngine(cfg *config.Config) (*engine.Engine, checkpoint.Store, *observability.Logger, error) {
	planner, executor, err := llm.Models(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewClockTool())
	registry.Register(tools.NewFilesystemTool(cfg.App.Workspace))
	registry.Register(tools.NewPythonTool())
	registry.Register(tools.NewReadPageTool())
	registry.Register(tools.NewBrowserTool())
	if searchTool, err := tools.NewSearchTool(); err != nil {
		log.Printf("Warning: failed to initialize search tool: %v", err)
	} else {
		registry.Register(searchTool)
	}

	policy, err := governance.FromRules(cfg.Policy.DenyTools, cfg.Policy.DenyArguments)
	if err != nil {
		return nil, nil, nil, err
	}

	var store checkpoint.Store
	switch cfg.Checkpoint.Driver {
	case "memory":
		store = checkpoint.NewMemoryStore()
	default:
		store, err = checkpoint.NewSQLiteStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open checkpoint store: %w", err)
		}
	}

	logger := observability.NewLoggerWith(os.Stdout, cfg.Logging.EventsFile)

	eng, err := engine.New(engine.Dependencies{
		Planner:     planner,
		Executor:    executor,
		Registry:    registry,
		Checkpoints: store,
		Policy:      policy,
		Prompts:     engine.NewPromptManager(cfg.App.Prompts),
		Logger:      logger,
		Budget: engine.Budget{
			MaxToolCalls:   cfg.Engine.MaxToolCalls,
			StepTimeout:    cfg.Engine.StepTimeout(),
			MinOutputChars: cfg.Engine.MinOutputChars,
		},
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return eng, store, logger, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and optional Telegram gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			observability.PrintBanner()
			observability.InitializeTerminal()
			log.SetOutput(observability.NewTermWriter())

			eng, store, logger, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sweeper := checkpoint.NewSweeper(store,
				time.Duration(cfg.Checkpoint.SweepMinutes)*time.Minute,
				time.Duration(cfg.Checkpoint.RetentionHours)*time.Hour,
				logger)
			go sweeper.Start(ctx)

			go func() {
				ticker := time.NewTicker(1 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						observability.PrintLiveStatus()
					}
				}
			}()

			go func() {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						observability.Heartbeat()
						logger.LogHeartbeat()
					}
				}
			}()

			if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
				tg, err := gateway.NewTelegramGateway(cfg.Telegram.Token, eng)
				if err != nil {
					return err
				}
				go func() {
					if err := tg.Start(); err != nil {
						log.Printf("Telegram gateway error: %v", err)
					}
				}()
				defer tg.Stop()
			}

			api := httpapi.NewServer(eng, newServerLogger(observability.NewTermWriter()))
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: api.Handler()}

			go func() {
				log.Printf("HTTP API listening on %s", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("HTTP server error: %v", err)
					stop()
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			observability.CleanupTerminal()
			log.Println("Shutdown complete")
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one task to completion in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			eng, store, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			task := strings.Join(args, " ")
			stream := eng.Start(cmd.Context(), sessionID, task)
			return drainInteractive(cmd.Context(), eng, stream)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to use (replaces an existing session)")
	return cmd
}

// drainInteractive prints events and, when the session suspends for
// confirmation, prompts on stdin and resumes until the session is
// terminal.
func drainInteractive(ctx context.Context, eng *engine.Engine, stream *engine.Stream) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		for ev := range stream.Events() {
			printEvent(ev)
		}
		st, err := stream.Result()
		if err != nil {
			return err
		}
		if st == nil || st.Status != engine.StatusAwaitingConfirmation {
			return nil
		}

		fmt.Print("> ")
		feedback, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		stream, err = eng.Resume(ctx, st.SessionID, strings.TrimSpace(feedback))
		if err != nil {
			return err
		}
	}
}

func printEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventCompleted:
		if response, ok := ev.Data["response"].(string); ok {
			fmt.Printf("\n%s\n", response)
			return
		}
		fmt.Println(ev.Message)
	case engine.EventConfirmationRequired:
		fmt.Printf("[%s] %s\n", ev.Kind, ev.Message)
		fmt.Println("Enter your answer to continue:")
	default:
		fmt.Printf("[%s] %s\n", ev.Kind, ev.Message)
	}
}

func newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id> <feedback>",
		Short: "Resume a suspended session with feedback",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			eng, store, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stream, err := eng.Resume(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return drainInteractive(cmd.Context(), eng, stream)
		},
	}
}

func newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			eng, store, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := eng.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No stored sessions")
				return nil
			}
			for _, s := range sessions {
				task := s.Task
				if len(task) > 48 {
					task = task[:45] + "..."
				}
				fmt.Printf("%-36s  %-22s  %d/%d steps  %s  %s\n",
					s.SessionID, s.Status, s.Completed, s.Steps,
					s.UpdatedAt.Format("2006-01-02 15:04"), task)
			}
			return nil
		},
	}
}

func newDiscardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <session-id>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			eng, store, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := eng.Discard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}
