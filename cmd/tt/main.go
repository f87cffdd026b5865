package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tasktalk/internal/chat"
	"tasktalk/internal/classify"
	"tasktalk/internal/config"
	"tasktalk/internal/db"
	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/events"
	"tasktalk/internal/intent"
	"tasktalk/internal/migrate"
	"tasktalk/internal/repo"
	"tasktalk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tt",
	Short: "TaskTalk CLI",
	Long: `TaskTalk is a conversational todo service. Talk to it in plain English
(or Urdu) and it turns your messages into task operations: "add a task to
buy groceries", "show my high priority tasks", "complete task 3". Unclear
messages fall back to a language model; a bare "add task" starts a short
guided wizard. Run the HTTP API with 'tt serve' or chat locally with
'tt chat'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKTALK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "user identifier")
	rootCmd.PersistentFlags().String("lang", "", "reply language (en or ur)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
	_ = viper.BindPFlag("lang", rootCmd.PersistentFlags().Lookup("lang"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
}

// withEngine opens the workspace database, migrates it and runs fn.
func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine, *config.Config) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	e := engine.New(r, events.Writer{DB: conn})
	return fn(ctx, e, cfg)
}

func newOrchestrator(e *engine.Engine, cfg *config.Config, log *slog.Logger) *chat.Orchestrator {
	o := &chat.Orchestrator{
		Repo:            e.Repo,
		Engine:          e,
		Log:             log,
		HistoryLimit:    cfg.Chat.HistoryLimit,
		DefaultLanguage: cfg.Chat.DefaultLanguage,
	}
	if cfg.ModelAPIKey() != "" {
		o.Classifier = classify.NewModel(cfg, log)
	} else {
		log.Warn("no model api key set; unmatched messages get a canned reply",
			"env", cfg.Model.APIKeyEnv)
	}
	return o
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, cfg *config.Config) error {
				log := newLogger()
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				secret := os.Getenv("TASKTALK_JWT_SECRET")
				if secret == "" {
					secret = cfg.Auth.JWTSecret
				}
				if secret == "" {
					return fmt.Errorf("TASKTALK_JWT_SECRET is required for bearer auth")
				}
				authCfg := server.AuthConfig{
					JWTSecret:             secret,
					AllowLegacyUserHeader: cfg.Auth.AllowLegacyUserHeader,
					DevTokenTTL:           time.Duration(cfg.Auth.DevTokenTTLMinutes) * time.Minute,
					Logger:                log,
				}
				handler, err := server.New(server.Config{
					Engine:       e,
					Orchestrator: newOrchestrator(e, cfg, log),
					BasePath:     basePath,
					Auth:         authCfg,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-cmd.Context().Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				log.Info("serving TaskTalk API", "addr", addr, "base_path", basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func chatCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one chat message locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, cfg *config.Config) error {
				o := newOrchestrator(e, cfg, newLogger())
				turn, err := o.Handle(ctx, viper.GetString("user-id"), conversationID, strings.Join(args, " "), viper.GetString("lang"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(turn)
				}
				fmt.Println(turn.Reply)
				fmt.Printf("(conversation %s)\n", turn.ConversationID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Task operations"}
	cmd.AddCommand(taskAddCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskGetCmd())
	cmd.AddCommand(taskDoneCmd())
	cmd.AddCommand(taskRmCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var a intent.CreateTask
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				a.UserID = viper.GetString("user-id")
				a.Title = strings.Join(args, " ")
				a.Tags = tags
				t, err := e.CreateTaskForUser(ctx, a)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("created task #%d: %s\n", t.ID, t.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&a.Description, "description", "", "task description")
	cmd.Flags().StringVar(&a.Category, "category", "", "category name")
	cmd.Flags().StringVar(&a.Priority, "priority", "", "low|medium|high|critical")
	cmd.Flags().StringVar(&a.DueDate, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&a.RecurrencePattern, "recurrence", "", "daily|weekly|monthly")
	cmd.Flags().IntVar(&a.RecurrenceInterval, "interval", 0, "recurrence interval")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var q domain.QuerySpec
	var tags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				q.Tags = tags
				q.Normalize()
				tasks, err := e.Repo.ListTasks(ctx, viper.GetString("user-id"), q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status", "Due", "Tags"})
				for _, t := range tasks {
					status := "pending"
					if t.Completed {
						status = "done"
					}
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, status, due, strings.Join(t.Tags, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Status, "status", "", "pending|completed")
	cmd.Flags().StringVar(&q.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&q.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&q.Keyword, "keyword", "", "keyword search")
	cmd.Flags().StringVar(&q.Sort, "sort", "", "created_desc|priority_desc|due_asc|due_desc|title_asc")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "page offset")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag filter (repeatable)")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				t, err := e.Repo.GetTask(ctx, viper.GetString("user-id"), id)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	return cmd
}

func taskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				done := true
				t, err := e.PatchTask(ctx, viper.GetString("user-id"), id, engine.TaskPatch{Completed: &done})
				if err != nil {
					return err
				}
				fmt.Printf("completed task #%d: %s\n", t.ID, t.Title)
				return nil
			})
		},
	}
	return cmd
}

func taskRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				if err := e.RemoveTask(ctx, viper.GetString("user-id"), id); err != nil {
					return err
				}
				fmt.Printf("deleted task #%d\n", id)
				return nil
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "API key management"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				buf := make([]byte, 24)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				key := "tt_" + hex.EncodeToString(buf)
				err := e.Repo.InsertAPIKey(ctx, repo.APIKey{
					ID:      uuid.NewString(),
					UserID:  viper.GetString("user-id"),
					KeyHash: repo.HashAPIKey(key),
				})
				if err != nil {
					return err
				}
				fmt.Println(key)
				return nil
			})
		},
	}
	cmd.AddCommand(create)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine, _ *config.Config) error {
				items, err := e.Repo.LatestEvents(ctx, n, viper.GetString("user-id"), evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	return cmd
}

func parseTaskID(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
