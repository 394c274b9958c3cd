package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/bootstrap"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/config"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/migrations"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository/sqlite"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/support/logging"
)

var (
	remediateDryRun    bool
	remediateRefund    bool
	remediateOlderThan time.Duration
	remediateLimit     int
)

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Repair orders whose local state contradicts the gateway",
	Long: `Scans orders that look inconsistent (a recorded gateway transaction without
a paid status, or long-pending payment attempts), queries the gateway for the
authoritative answer, and repairs what can be repaired. Orders the gateway
confirms as charged but that still cannot be marked paid locally are flagged
as remediation candidates for manual review.

Refunds are never submitted automatically. Pass --refund to submit refunds
for the open candidate list; that flag is the recorded human approval.`,
	RunE: runRemediate,
}

func init() {
	remediateCmd.Flags().BoolVar(&remediateDryRun, "dry-run", false, "query the gateway but write nothing")
	remediateCmd.Flags().BoolVar(&remediateRefund, "refund", false, "submit refunds for open remediation candidates")
	remediateCmd.Flags().DurationVar(&remediateOlderThan, "older-than", time.Hour, "minimum age of pending orders to inspect")
	remediateCmd.Flags().IntVar(&remediateLimit, "limit", 0, "maximum orders to inspect (0 = repository default)")
	rootCmd.AddCommand(remediateCmd)
}

func runRemediate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Log.SlogLevel(),
		Format: "text",
	})

	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}

	store := sqlite.NewStore(db)

	gateway, err := zalopay.New(zalopay.Config{
		AppID:           cfg.ZaloPay.AppID,
		Key1:            cfg.ZaloPay.Key1,
		Key2:            cfg.ZaloPay.Key2,
		Endpoint:        cfg.ZaloPay.Endpoint,
		CreatePath:      cfg.ZaloPay.CreatePath,
		QueryPath:       cfg.ZaloPay.QueryPath,
		RefundPath:      cfg.ZaloPay.RefundPath,
		QueryRefundPath: cfg.ZaloPay.QueryRefundPath,
		CallbackURL:     cfg.ZaloPay.CallbackURL,
		RedirectURL:     cfg.ZaloPay.RedirectURL,
	}, zalopay.WithLogger(logger))
	if err != nil {
		return err
	}

	paymentService := service.NewPaymentService(store.Orders(), notifier.NewLoggerService(logger), cfg.Shop.Name, logger)
	reconcileService := service.NewReconcileService(store.Orders(), gateway, paymentService, nil, 0, logger)
	remediation := service.NewRemediationService(store.Orders(), store.RemediationCandidates(), gateway, gateway, reconcileService, logger)

	report, err := remediation.Run(cmd.Context(), service.RemediationOptions{
		DryRun:        remediateDryRun,
		OlderThan:     remediateOlderThan,
		SubmitRefunds: remediateRefund,
		Limit:         remediateLimit,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tAPP_TRANS_ID\tBEFORE\tAFTER\tNOTE")
	for _, review := range report.Reviews {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			review.OrderNumber, review.AppTransID, review.Before, review.After, review.Note)
	}
	w.Flush()

	fmt.Printf("\nscanned=%d repaired=%d unresolved=%d refunded=%d\n",
		report.Scanned, report.Repaired, report.Unresolved, report.Refunded)

	if report.Unresolved > 0 {
		fmt.Println("unresolved candidates remain; review with --refund after manual confirmation")
		os.Exit(1)
	}
	return nil
}
