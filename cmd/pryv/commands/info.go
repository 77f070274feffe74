package commands

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Display platform service info",
		Long:  "Fetch and display the service info document of the configured platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runInfo(cmd.Context(), cmd.OutOrStdout(), settings, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the service info cache")

	return cmd
}

// NewAssetsCommand creates the assets command.
func NewAssetsCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Display platform assets",
		Long:  "Load the asset definitions referenced by the platform service info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runAssets(cmd.Context(), cmd.OutOrStdout(), settings, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "reload the assets")

	return cmd
}

func runInfo(ctx context.Context, out io.Writer, settings *Settings, force bool) error {
	service, release, err := newService(settings)
	if err != nil {
		return err
	}
	defer release()

	info, err := service.Info(ctx, force)
	if err != nil {
		return fmt.Errorf("failed to get service info: %w", err)
	}

	return writeOutput(out, settings.Output, info, func(table *tablewriter.Table) {
		table.Header("Property", "Value")

		_ = table.Append("Name", info.Name)
		_ = table.Append("API", info.API)
		_ = table.Append("Register", orNotAvailable(info.Register))
		_ = table.Append("Access", orNotAvailable(info.Access))
		_ = table.Append("Home", orNotAvailable(info.Home))
		_ = table.Append("Support", orNotAvailable(info.Support))
		_ = table.Append("Terms", orNotAvailable(info.Terms))

		if info.EventTypes != "" {
			_ = table.Append("Event Types", info.EventTypes)
		}

		if info.Assets != nil {
			_ = table.Append("Assets", info.Assets.Definitions)
		}

		keys := make([]string, 0, len(info.Extra))
		for key := range info.Extra {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			_ = table.Append(label(key), formatValue(info.Extra[key]))
		}
	})
}

func runAssets(ctx context.Context, out io.Writer, settings *Settings, force bool) error {
	service, release, err := newService(settings)
	if err != nil {
		return err
	}
	defer release()

	assets, err := service.Assets(ctx, force)
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}

	if assets == nil {
		_, _ = fmt.Fprintln(out, "The platform publishes no assets")

		return nil
	}

	return writeOutput(out, settings.Output, assets, mapTable(assets))
}
