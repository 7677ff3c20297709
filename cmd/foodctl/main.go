package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/Dias221467/FoodRescue/internal/database"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(openStores)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "foodctl: %v\n", err)
		os.Exit(1)
	}
}

// storeOpener returns the stores to operate on and a release function.
type storeOpener func(ctx context.Context) (services.Stores, func(context.Context) error, error)

func openStores(ctx context.Context) (services.Stores, func(context.Context) error, error) {
	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel)
	return database.OpenStores(ctx, cfg)
}

func newRootCommand(open storeOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foodctl",
		Short: "Campus Food Rescue admin CLI",
		Long: `foodctl runs the maintenance operations of the Food Rescue backend against the
configured store: activity sweeps, reservation expiry, donation transfer and admin approvals.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newSweepCmd(open),
		newExpireClaimsCmd(open),
		newTransferExpiredCmd(open),
		newStatsCmd(open),
		newApproveAdminCmd(open),
	)
	return cmd
}

// withStores opens the stores, runs fn and releases them.
func withStores(cmd *cobra.Command, open storeOpener, fn func(ctx context.Context, stores services.Stores) error) error {
	ctx := cmd.Context()
	stores, closeStores, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeStores(context.Background())
	return fn(ctx, stores)
}

func newSweepCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired food items and reactivate extended ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, stores services.Stores) error {
				items := services.NewFoodItemService(stores.FoodItems, stores.Claims, stores.Donations, nil)
				deactivated, reactivated, err := items.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d, reactivated %d\n", deactivated, reactivated)
				return nil
			})
		},
	}
}

func newExpireClaimsCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-claims",
		Short: "Mark reservations past their pickup window as expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, stores services.Stores) error {
				claims := services.NewClaimService(stores.Claims, stores.FoodItems, nil, 0)
				n, err := claims.ExpireOverdue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d claim(s)\n", n)
				return nil
			})
		},
	}
}

func newTransferExpiredCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-expired",
		Short: "Create donation records for expired, unclaimed stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, stores services.Stores) error {
				donations := services.NewDonationService(stores.FoodItems, stores.Donations)
				n, err := donations.TransferExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d donation(s)\n", n)
				return nil
			})
		},
	}
}

func newStatsCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print campus impact statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, stores services.Stores) error {
				stats, err := services.NewStatsService(stores.FoodItems, stores.Claims).Compute(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newApproveAdminCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "approve-admin <wallet>",
		Short: "Promote a pending admin signup to admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, open, func(ctx context.Context, stores services.Stores) error {
				identity := services.NewIdentityService(stores.Users, nil, "", nil)
				user, err := identity.ApproveAdminByWallet(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "approved %s (%s)\n", user.WalletAddress, user.ID.Hex())
				return nil
			})
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
