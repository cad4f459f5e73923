package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/archive"
	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/config"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/observability"
	"github.com/spec-kit/vendor-desk/internal/persistence"
	"github.com/spec-kit/vendor-desk/internal/repository"
	"github.com/spec-kit/vendor-desk/internal/service"
	"github.com/spec-kit/vendor-desk/internal/worker"
)

var (
	timeout     time.Duration
	activeOnly  bool
	noProvision bool
)

var rootCmd = &cobra.Command{
	Use:           "deskctl",
	Short:         "Operate the vendor desk directory",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

// syncCmd imports a vendor CSV the same way POST /api/sync-vendors does
var syncCmd = &cobra.Command{
	Use:   "sync <file.csv>",
	Short: "Sync vendors from a CSV file",
	Long: `Upsert vendors from a CSV of (id, email, name) rows.

Generated passwords for new vendors are printed once and never stored in
plain text.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "Inspect the vendor directory",
}

var vendorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vendors",
	RunE:  runVendorsList,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")
	syncCmd.Flags().BoolVar(&noProvision, "no-provision", false, "Skip creating chat users for new vendors")
	vendorsListCmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active vendors")

	vendorsCmd.AddCommand(vendorsListCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(vendorsCmd)
}

// env is what every command needs: config, a logger and the database.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pg: pg}, nil
}

func (e *env) Close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	return persistence.RunMigrations(ctx, e.pg.PoolHandle(), e.logger)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	dispatcher := events.NewInMemoryDispatcher()
	worker.RegisterEventLog(dispatcher, e.logger)
	if !noProvision {
		transport := chat.NewCometChatClient(chat.CometChatConfig{
			BaseURL: e.cfg.Chat.Endpoint(),
			APIKey:  e.cfg.Chat.APIKey,
			Timeout: e.cfg.Chat.Timeout(),
		}, e.logger, nil)
		provisioning := worker.StartProvisioningWorker(ctx, dispatcher, service.NewProvisioningService(transport, nil, e.logger), e.logger)
		defer provisioning.Stop()
	}

	vendors := service.NewVendorService(*e.cfg, service.VendorDependencies{
		VendorRepo: repository.NewVendorRepository(e.pg.PoolHandle()),
		Dispatcher: dispatcher,
		Archiver:   archive.New(e.cfg.Archive),
		Logger:     e.logger,
	})
	res, err := vendors.Sync(ctx, f)
	if err != nil {
		return err
	}
	printSyncResult(cmd, res)
	return nil
}

func printSyncResult(cmd *cobra.Command, res *domain.SyncResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "added=%d updated=%d skipped=%d total=%d\n", res.Added, res.Updated, res.Skipped, res.Total)
	if len(res.NewVendors) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tNAME\tEMAIL\tPASSWORD")
	for _, c := range res.NewVendors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.UID, c.Name, c.Email, c.Password)
	}
	_ = w.Flush()
}

func runVendorsList(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	filter := repository.VendorFilter{}
	if activeOnly {
		active := true
		filter.Active = &active
	}
	list, err := repository.NewVendorRepository(e.pg.PoolHandle()).List(ctx, filter)
	if err != nil {
		return err
	}
	printVendors(cmd, list)
	return nil
}

func printVendors(cmd *cobra.Command, vendors []domain.Vendor) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tEXTERNAL ID\tNAME\tEMAIL\tACTIVE")
	for _, v := range vendors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", v.UID, v.ExternalID, v.Name, v.Email, v.Active)
	}
	_ = w.Flush()
}
