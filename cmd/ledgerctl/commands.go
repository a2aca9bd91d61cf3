package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/client"
	"github.com/svirmi/gift-ledger/internal/counterparty"
	"github.com/svirmi/gift-ledger/internal/helpers"
	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
	"github.com/svirmi/gift-ledger/internal/repository"
	"github.com/svirmi/gift-ledger/internal/role"
	"github.com/svirmi/gift-ledger/internal/seed"
)

type rootOptions struct {
	api      string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operate a gift ledger deployment",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.api, "api", helpers.GetEnvAsStr("LEDGER_API", "http://localhost:8080"), "base URL of the ledger API")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newTokenCmd(),
		newAuthorizeCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the configured Postgres database",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr())
			db, err := helpers.OpenDB(cmd.Context(), helpers.DBConfigFromEnv(), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(db, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo users, catalog and transactions",
		Long: `The seed command writes the demo community into the configured Postgres
database. Records that already exist are left untouched. With --dry-run the
data is loaded into an in-memory store and only summarized.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger(cmd.ErrOrStderr())

			var store repository.Store
			if dryRun {
				store = repository.NewMemory()
			} else {
				db, err := helpers.OpenDB(ctx, helpers.DBConfigFromEnv(), logger)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := repository.Migrate(db, logger); err != nil {
					return err
				}
				store = repository.NewPostgres(db)
			}

			if err := seed.Load(ctx, store, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d gifts, %d transactions\n",
				len(seed.Users()), len(seed.Gifts()), len(seed.Transactions()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "load into memory instead of Postgres")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		level  int
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := role.Parse(level)
			if err != nil {
				return err
			}
			issuer, err := auth.NewIssuer(helpers.GetEnvAsStr("JWT_SECRET", ""), ttl)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(userID, lvl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the token is issued to")
	cmd.Flags().IntVar(&level, "role", 0, "role level (0 participant, 1 manager, 2 admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newAuthorizeCmd(opts *rootOptions) *cobra.Command {
	var (
		userID      string
		counterUser string
		operation   string
		ids         []string
		channel     string
		scanTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Run the counterparty authorization flow for a batch of transactions",
		Long: `The authorize command logs in as --user, selects the transactions on which
--operation is pending for --counterparty (all of them, or those named by
--ids), and reads the counterparty's token from stdin. The batch is committed
only when the token matches the counterparty every selected transaction
requires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			logger := opts.logger(cmd.ErrOrStderr())

			op, err := ledger.ParseOperation(operation)
			if err != nil {
				return err
			}

			c := client.New(opts.api)
			if err := c.Login(ctx, userID); err != nil {
				return fmt.Errorf("login as %s: %w", userID, err)
			}

			if counterUser == "" {
				counterUser = userID
			}
			candidates, err := c.Transactions(ctx, op, counterUser)
			if err != nil {
				return err
			}
			selected := selectTransactions(candidates, ids)
			if len(selected) == 0 {
				return fmt.Errorf("no transactions awaiting %s by %s: %w", op, counterUser, model.ErrNotFound)
			}

			var sessionOpts []counterparty.Option
			if scanTimeout > 0 {
				sessionOpts = append(sessionOpts, counterparty.WithScanTimeout(scanTimeout))
			}
			session := counterparty.NewSession(c, newLineScanner(cmd.InOrStdin(), out), logger, sessionOpts...)

			st, err := session.Begin(op, selected)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %d transaction(s): %s\n", op, len(st.Selected), strings.Join(st.Selected, ", "))
			fmt.Fprintf(out, "counterparty %s must present their token\n", st.RequiredIdentity)

			st, err = session.Choose(ctx, counterparty.Channel(channel))
			if err != nil {
				return err
			}
			if err := counterparty.Outcome(st); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s committed\n", op)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "requesting user id")
	cmd.Flags().StringVar(&counterUser, "counterparty", "", "user who must prove their identity (default --user)")
	cmd.Flags().StringVar(&operation, "operation", "", "operation to authorize (Pay, Deliver, Cancel)")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "transaction ids to include (default all candidates)")
	cmd.Flags().StringVar(&channel, "channel", string(counterparty.ChannelVisual), "scan channel (proximity, visual)")
	cmd.Flags().DurationVar(&scanTimeout, "scan-timeout", 0, "give up waiting for a token after this long")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("operation")
	return cmd
}

// selectTransactions keeps the candidates named in ids, or all of them when
// ids is empty. Unknown ids are ignored.
func selectTransactions(candidates []model.TransactionView, ids []string) []model.Transaction {
	var out []model.Transaction
	for _, v := range candidates {
		if len(ids) == 0 || slices.Contains(ids, v.ID) {
			out = append(out, v.Transaction)
		}
	}
	return out
}
