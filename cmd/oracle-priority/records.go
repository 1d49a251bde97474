package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StrathCole/oracle-priority/pkg/config"
	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/priority"
	"github.com/StrathCole/oracle-priority/pkg/server/api"
	"github.com/StrathCole/oracle-priority/pkg/server/resolver"
)

// The record commands open the store directly. A pebble store is locked by a running
// server; use the HTTP API in that case.

var initCmd = &cobra.Command{
	Use:   "init ASSET [NAME]",
	Short: "Create the price record of an asset with both slots disabled",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, args []string) error {
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		rec, err := svc.Initialize(ctx, args[0], name)
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewAssetView(rec))
	}),
}

var setPrioritiesCmd = &cobra.Command{
	Use:   "set-priorities ASSET A B",
	Short: "Set both slot priorities to a rank or \"off\"",
	Long: `Set both slot priorities. Each value is a rank from 0 (preferred) to 2, or "off"
to disable the slot. At least one slot must stay enabled and enabled slots need
distinct ranks.`,
	Args: cobra.ExactArgs(3),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, args []string) error {
		a, err := priority.Parse(args[1])
		if err != nil {
			return fmt.Errorf("priority a: %w", err)
		}
		b, err := priority.Parse(args[2])
		if err != nil {
			return fmt.Errorf("priority b: %w", err)
		}
		rec, err := svc.UpdatePriorities(ctx, args[0], a, b)
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewAssetView(rec))
	}),
}

var setSourcesCmd = &cobra.Command{
	Use:   "set-sources ASSET FEED_ID ACCOUNT",
	Short: "Set the Pyth feed id (hex) and the Switchboard account (base58); \"\" clears a slot",
	Args:  cobra.ExactArgs(3),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, args []string) error {
		a, err := oracle.SlotA.ParseSourceID(args[1])
		if err != nil {
			return err
		}
		b, err := oracle.SlotB.ParseSourceID(args[2])
		if err != nil {
			return err
		}
		rec, err := svc.UpdateSources(ctx, args[0], a, b)
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewAssetView(rec))
	}),
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [ASSET...]",
	Short: "Resolve the given assets, or every asset when none is given",
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, args []string) error {
		if len(args) == 0 {
			recs, err := svc.List(ctx)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				args = append(args, rec.Asset)
			}
		}

		failed := 0
		out := make([]api.ResolutionView, 0, len(args))
		for _, asset := range args {
			res, err := svc.Resolve(ctx, asset)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", asset, err)
				continue
			}
			out = append(out, api.NewResolutionView(res))
		}
		if err := printJSON(cmd, out); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d resolutions failed", failed, len(args))
		}
		return nil
	}),
}

var showCmd = &cobra.Command{
	Use:   "show ASSET",
	Short: "Print the price record of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, args []string) error {
		rec, err := svc.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewAssetView(rec))
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every price record",
	Args:  cobra.NoArgs,
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, _ []string) error {
		recs, err := svc.List(ctx)
		if err != nil {
			return err
		}
		out := make([]api.AssetView, 0, len(recs))
		for _, rec := range recs {
			out = append(out, api.NewAssetView(rec))
		}
		return printJSON(cmd, out)
	}),
}

func init() {
	rootCmd.AddCommand(initCmd, setPrioritiesCmd, setSourcesCmd, resolveCmd, showCmd, listCmd)
}

type serviceFunc func(ctx context.Context, cmd *cobra.Command, svc *resolver.Service, args []string) error

// withService runs fn against a service built from the configuration. Logs go to
// stderr so command output stays parseable.
func withService(fn serviceFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Logging.Output = "stderr"
		if logLevel == "" {
			cfg.Logging.Level = "warn"
		}
		logger, err := initLogger(cfg)
		if err != nil {
			return err
		}
		return runWithService(cmd, cfg, logger, fn, args)
	}
}

func runWithService(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger, fn serviceFunc, args []string) error {
	svc, st, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, cmd, svc, args)
}
