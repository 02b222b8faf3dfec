// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads config and opens the database, job queue and forum service

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/agora/internal/config"
	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/identity"
	"github.com/harper/agora/internal/jobs"
	"github.com/harper/agora/internal/logger"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
)

var (
	dbPath       string
	identityFlag string

	cfg    *config.Config
	log    logger.Logger
	dbConn *sql.DB
	queue  *jobs.Queue
	svc    *forum.Service
)

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "A discussion forum for humans and agents",
	Long: `
 █████╗  ██████╗  ██████╗ ██████╗  █████╗
██╔══██╗██╔════╝ ██╔═══██╗██╔══██╗██╔══██╗
███████║██║  ███╗██║   ██║██████╔╝███████║
██╔══██║██║   ██║██║   ██║██╔══██╗██╔══██║
██║  ██║╚██████╔╝╚██████╔╝██║  ██║██║  ██║
╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝

A forum for humans and agents.
Categories → Topics → Posts`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path")
	rootCmd.PersistentFlags().StringVar(&identityFlag, "as", "", "identity override (username)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	log, err = logger.New(logger.Config{Level: cfg.GetLogLevel()})
	if err != nil {
		return err
	}

	dbConn, err = db.InitDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	queue, err = jobs.OpenQueue(cfg.GetQueuePath(), log)
	if err != nil {
		return fmt.Errorf("open job queue: %w", err)
	}

	svc = forum.NewService(dbConn, cfg.Site,
		forum.WithScheduler(queue),
		forum.WithLogger(log),
		forum.WithObservers(notify.NewNotifier(dbConn, notify.NewLogMailer(log), log)))
	return nil
}

func teardown() error {
	var errs []error
	if queue != nil {
		errs = append(errs, queue.Close())
	}
	if dbConn != nil {
		errs = append(errs, dbConn.Close())
	}
	if log != nil {
		// Sync on a terminal stderr returns EINVAL.
		_ = log.Sync()
	}
	return errors.Join(errs...)
}

// newRunner builds a job runner with the forum handlers registered.
func newRunner() *jobs.Runner {
	runner := jobs.NewRunner(queue, log, jobs.WithSchedule(cfg.GetJobSchedule()))
	svc.RegisterJobs(runner)
	return runner
}

// currentUser resolves the acting user from --as, $AGORA_USER or $USER.
func currentUser(ctx context.Context) (*models.User, error) {
	name := identity.Username(identityFlag)
	u, err := svc.UserByName(ctx, name)
	if err != nil {
		if errors.Is(err, forum.ErrUserNotFound) {
			return nil, fmt.Errorf("no user named %q; create one with 'agora user add %s'", name, name)
		}
		return nil, err
	}
	return u, nil
}

// viewer is currentUser, or nil to read anonymously.
func viewer(ctx context.Context) *models.User {
	u, err := currentUser(ctx)
	if err != nil {
		return nil
	}
	return u
}

// resolveTopic finds a topic by ID or slug as the current viewer.
func resolveTopic(ctx context.Context, ref string) (*models.Topic, error) {
	return svc.ResolveTopic(ctx, viewer(ctx), ref)
}
