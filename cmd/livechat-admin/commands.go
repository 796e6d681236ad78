// File: cmd/livechat-admin/commands.go
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-livechat/internal/database"
	"github.com/iyunix/go-livechat/internal/feed"
	"github.com/iyunix/go-livechat/internal/repository/conversation"
	"github.com/iyunix/go-livechat/internal/repository/message"
	"github.com/iyunix/go-livechat/internal/repository/operator"
	"github.com/iyunix/go-livechat/internal/services"
	"github.com/iyunix/go-livechat/internal/services/operator_services"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "livechat-admin",
		Usage:     "Manage operators and conversations of a livechat database",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-driver",
				Usage:   "Database engine (sqlite or postgres)",
				Value:   database.DriverSQLite,
				EnvVars: []string{"DB_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "SQLite file or PostgreSQL DSN",
				Value:   "livechat.db",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{
			operatorCommand(),
			conversationCommand(),
		},
	}
}

func operatorCommand() *cli.Command {
	return &cli.Command{
		Name:  "operator",
		Usage: "Manage operator accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an operator who can sign in to the console",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "Sign-in email"},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{
						Name:     "password",
						Required: true,
						Usage:    "Initial password",
						EnvVars:  []string{"OPERATOR_PASSWORD"},
					},
				},
				Action: runOperatorCreate,
			},
			{
				Name:   "list",
				Usage:  "List operators",
				Action: runOperatorList,
			},
		},
	}
}

func conversationCommand() *cli.Command {
	return &cli.Command{
		Name:  "conversation",
		Usage: "Inspect and close conversations",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List conversations, most recently updated first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "Page size"},
					&cli.IntFlag{Name: "offset", Usage: "Rows to skip"},
				},
				Action: runConversationList,
			},
			{
				Name:   "summaries",
				Usage:  "Show every conversation with its last message and unread count",
				Action: runConversationSummaries,
			},
			{
				Name:  "close",
				Usage: "Close a conversation; the visitor's next visit starts a new one",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true, Usage: "Conversation id"},
				},
				Action: runConversationClose,
			},
		},
	}
}

func openDB(c *cli.Context) (*gorm.DB, error) {
	db, err := database.Open(database.Options{
		Driver:   c.String("db-driver"),
		DSN:      c.String("database-url"),
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newChatService(db *gorm.DB) (*services.ChatService, error) {
	logger := &services.NoOpLogger{}
	hub := feed.NewHub(feed.DefaultBufferSize, logger)
	return services.NewChatService(nil,
		conversation.NewConversationRepository(db),
		message.NewMessageRepository(db),
		hub, hub, logger)
}

func runOperatorCreate(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer closeDB(db)

	svc := operator_services.NewOperatorService(operator.NewGormOperatorRepository(db), &services.NoOpLogger{})
	op, err := svc.CreateOperator(c.Context, c.String("email"), c.String("name"), c.String("password"))
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Created operator %d (%s)\n", op.ID, op.Email)
	return nil
}

func runOperatorList(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer closeDB(db)

	svc := operator_services.NewOperatorService(operator.NewGormOperatorRepository(db), &services.NoOpLogger{})
	operators, err := svc.ListOperators(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list operators: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tCREATED")
	for _, op := range operators {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", op.ID, op.Email, op.DisplayName, op.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runConversationList(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer closeDB(db)

	chat, err := newChatService(db)
	if err != nil {
		return err
	}
	convs, total, err := chat.ListConversations(c.Context, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVISITOR\tSTATUS\tUPDATED")
	for _, conv := range convs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", conv.ID, conv.VisitorID, conv.Status, conv.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d of %d conversations\n", len(convs), total)
	return nil
}

func runConversationSummaries(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer closeDB(db)

	chat, err := newChatService(db)
	if err != nil {
		return err
	}
	summaries, err := chat.Summaries(c.Context)
	if err != nil {
		return fmt.Errorf("failed to load summaries: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVISITOR\tSTATUS\tUNREAD\tLAST MESSAGE")
	for _, s := range summaries {
		last := ""
		if s.LastMessage != nil {
			last = truncate(s.LastMessage.Content, 40)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			s.Conversation.ID, s.Conversation.VisitorID, s.Conversation.Status, s.UnreadCount, last)
	}
	return tw.Flush()
}

func runConversationClose(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer closeDB(db)

	chat, err := newChatService(db)
	if err != nil {
		return err
	}
	id := c.Uint("id")
	if err := chat.CloseConversation(c.Context, id); err != nil {
		return fmt.Errorf("failed to close conversation %d: %w", id, err)
	}

	fmt.Fprintf(c.App.Writer, "Closed conversation %d\n", id)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
