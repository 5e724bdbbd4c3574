package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/application/command"
	"github.com/majorpath/majorpath-hub/internal/application/query"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/catalog"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence/postgres"
	"github.com/majorpath/majorpath-hub/internal/interface/http/handlers"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

// =============================================================================
// MIGRATE
// =============================================================================

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		if migrateStatus {
			status, err := e.backend.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			if len(status) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no versioned migrations\n", e.backend.Name)
				return nil
			}
			return printMigrations(cmd.OutOrStdout(), status)
		}

		applied, err := e.backend.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migration(s) applied\n", e.backend.Name, applied)
		return nil
	},
}

func printMigrations(out io.Writer, status []postgres.Migration) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range status {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return w.Flush()
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "List migrations and whether each has been applied")
}

// =============================================================================
// SHOW
// =============================================================================

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Print a user's dashboard",
	Long:  `Builds the same dashboard the API serves. A user without a record gets one created.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the raw dashboard as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	cat, err := catalog.Load(e.cfg.Progress.CatalogPath)
	if err != nil {
		return err
	}
	clock := &timeutil.SystemClock{Location: e.cfg.App.Location}
	h := query.NewGetProgressHandler(e.backend.Store, query.GetProgressHandlerConfig{
		Catalog:          cat,
		Clock:            clock,
		Features:         e.cfg.Features,
		RecentActivities: e.cfg.Progress.RecentActivities,
		Logger:           e.log,
	})

	dto, err := h.Handle(ctx, query.GetProgressQuery{UserID: args[0]})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dto)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "user\t%s\n", dto.UserID)
	fmt.Fprintf(w, "level\t%d (%d xp, %d to next)\n", dto.Level.Level, dto.Level.Experience, dto.Level.ToNextLevel)
	fmt.Fprintf(w, "points\t%d\n", dto.Overview.TotalPoints)
	fmt.Fprintf(w, "progress\t%d%%\n", dto.Overview.TotalProgress)
	fmt.Fprintf(w, "explored\t%d majors, %d roadmaps, %d assessments\n",
		dto.Overview.MajorsExplored, dto.Overview.RoadmapsViewed, dto.Overview.AssessmentsTaken)
	if s := dto.Streak; s != nil {
		fmt.Fprintf(w, "streak\t%d (best %d)\n", s.CurrentStreak, s.LongestStreak)
		if !s.LastActivityDate.IsZero() {
			idle := s.LastActivityDate.DaysUntil(shared.DayOf(clock.Now()))
			fmt.Fprintf(w, "last active\t%s (%d day(s) ago)\n", s.LastActivityDate, idle)
		}
	}
	if dto.Achievements != nil {
		earned := 0
		for _, a := range dto.Achievements {
			if a.Earned {
				earned++
			}
		}
		fmt.Fprintf(w, "achievements\t%d/%d\n", earned, len(dto.Achievements))
	}
	for _, g := range dto.Goals {
		state := "open"
		if g.Completed {
			state = "done"
		}
		fmt.Fprintf(w, "goal\t%s %d/%d %s [%s]\n", g.Title, g.Current, g.Target, g.Unit, state)
	}
	if c := dto.CurrentChallenge; c != nil {
		fmt.Fprintf(w, "challenge\t%d/%d %s\n", c.Index+1, c.Total, c.Title)
	}
	fmt.Fprintf(w, "version\t%d\n", dto.Version)
	return w.Flush()
}

// =============================================================================
// EVALUATE
// =============================================================================

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <user-id>",
	Short: "Unlock every achievement a user already qualifies for",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		cat, err := catalog.Load(e.cfg.Progress.CatalogPath)
		if err != nil {
			return err
		}
		h := command.NewEvaluateAchievementsHandler(command.Deps{
			Store:    e.backend.Store,
			Catalog:  cat,
			Clock:    &timeutil.SystemClock{Location: e.cfg.App.Location},
			Features: e.cfg.Features,
			Logger:   e.log,
		})
		res, err := h.Handle(ctx, command.EvaluateAchievementsCommand{UserID: args[0]})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(res.Unlocked) == 0 {
			fmt.Fprintln(out, "nothing new to unlock")
			return nil
		}
		for _, id := range res.Unlocked {
			fmt.Fprintf(out, "unlocked %s\n", id)
		}
		return nil
	},
}

// =============================================================================
// CATALOG
// =============================================================================

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the achievement, goal and challenge catalog",
}

var catalogDumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Print the effective catalog as YAML",
	Long:  `Prints the built-in catalog merged with the given file, or with PROGRESS_CATALOG_PATH when no file is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.Getenv("PROGRESS_CATALOG_PATH")
		if len(args) == 1 {
			path = args[0]
		}
		cat, err := catalog.Load(path)
		if err != nil {
			return err
		}
		return catalog.Dump(cmd.OutOrStdout(), cat)
	},
}

// =============================================================================
// CREDENTIALS
// =============================================================================

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.HTTP.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		token, err := handlers.NewUserAuth(cfg.HTTP.JWTSecret, "id").IssueToken(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var hashCost int

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <admin-key>",
	Short: "Hash an admin API key for ADMIN_KEY_HASHES",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := handlers.HashAdminKey(args[0], hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	hashKeyCmd.Flags().IntVar(&hashCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}
