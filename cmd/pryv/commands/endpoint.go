package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// EndpointInfo is an API endpoint split into its parts.
type EndpointInfo struct {
	APIEndpoint string `json:"api_endpoint" yaml:"api_endpoint"`
	Endpoint    string `json:"endpoint"     yaml:"endpoint"`
	Token       string `json:"token"        yaml:"token"`
}

// NewEndpointCommand creates the endpoint command group.
func NewEndpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoint",
		Aliases: []string{"ep"},
		Short:   "Parse and build API endpoints",
		Long:    "Split API endpoints into endpoint and token, join them back, or derive a user's endpoint from the service info",
	}

	cmd.AddCommand(newEndpointParseCommand())
	cmd.AddCommand(newEndpointBuildCommand())
	cmd.AddCommand(newEndpointForCommand())

	return cmd
}

func newEndpointParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse API_ENDPOINT",
		Short: "Split an API endpoint",
		Long:  "Split an API endpoint such as https://token@user.pryv.me/ into endpoint and token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := pryv.ParseAPIEndpoint(args[0])
			if err != nil {
				return err
			}

			return writeEndpoint(cmd.OutOrStdout(), currentSettings().Output, endpoint)
		},
	}
}

func newEndpointBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build ENDPOINT [TOKEN]",
		Short: "Join an endpoint and a token",
		Long:  "Build an API endpoint by embedding the token into the endpoint URL",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 2 {
				token = args[1]
			}

			built, err := pryv.BuildAPIEndpoint(args[0], token)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), built)

			return nil
		},
	}
}

func newEndpointForCommand() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "for USERNAME",
		Short: "Derive a user's API endpoint",
		Long:  "Substitute the username into the api template of the platform service info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runEndpointFor(cmd.Context(), cmd.OutOrStdout(), settings, args[0], token)
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "token to embed")

	return cmd
}

func runEndpointFor(ctx context.Context, out io.Writer, settings *Settings, username, token string) error {
	service, release, err := newService(settings)
	if err != nil {
		return err
	}
	defer release()

	endpoint, err := service.APIEndpointFor(ctx, username, token)
	if err != nil {
		return fmt.Errorf("failed to derive endpoint for %s: %w", username, err)
	}

	return writeEndpoint(out, settings.Output, endpoint)
}

func writeEndpoint(out io.Writer, format string, endpoint *pryv.APIEndpoint) error {
	endpointInfo := EndpointInfo{
		APIEndpoint: endpoint.String(),
		Endpoint:    endpoint.Endpoint,
		Token:       endpoint.Token,
	}

	return writeOutput(out, format, endpointInfo, func(table *tablewriter.Table) {
		table.Header("Property", "Value")
		_ = table.Append("API Endpoint", endpointInfo.APIEndpoint)
		_ = table.Append("Endpoint", endpointInfo.Endpoint)
		_ = table.Append("Token", orNotAvailable(endpointInfo.Token))
	})
}
