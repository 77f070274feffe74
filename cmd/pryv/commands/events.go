package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
	"github.com/spf13/cobra"
)

// NewEventsCommand creates the events command.
func NewEventsCommand() *cobra.Command {
	var query []string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream events",
		Long: `Read events from the API endpoint without buffering the response.

Each event is printed as one JSON line as soon as it is decoded, followed by
the total count.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runEvents(cmd.Context(), cmd.OutOrStdout(), settings, query)
		},
	}

	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter key=value, e.g. limit=100 (repeatable)")

	return cmd
}

func runEvents(ctx context.Context, out io.Writer, settings *Settings, pairs []string) error {
	query, err := parseQuery(pairs)
	if err != nil {
		return err
	}

	conn, err := newConnection(ctx, settings, 0)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)

	var encodeErr error

	result, err := conn.StreamedGetEvent(ctx, query, func(event pryv.Event) {
		if encodeErr == nil {
			encodeErr = encoder.Encode(event)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to stream events: %w", err)
	}

	if encodeErr != nil {
		return fmt.Errorf("failed to write event: %w", encodeErr)
	}

	_, _ = fmt.Fprintf(out, "Events: %d\n", result.EventsCount)

	if settings.Verbose {
		_, _ = fmt.Fprintf(out, "Server clock delta: %.3fs\n", conn.DeltaTime())
	}

	return nil
}
