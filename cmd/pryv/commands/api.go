package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// BatchResult pairs a method call with its result.
type BatchResult struct {
	Method string      `json:"method" yaml:"method"`
	Result interface{} `json:"result" yaml:"result"`
}

// NewAPICommand creates the api command.
func NewAPICommand() *cobra.Command {
	var (
		file      string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Send batch method calls",
		Long: `Send the method calls listed in a JSON file through the batch endpoint.

The file holds an array of calls:

  [{"method": "streams.get", "params": {}}, {"method": "events.get", "params": {"limit": 10}}]

Calls are sent in chunks of --chunk-size and results are printed in call order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runAPI(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), settings, file, chunkSize)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the calls, '-' for stdin")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", constants.DefaultChunkSize, "maximum calls per batch request")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runAPI(ctx context.Context, in io.Reader, out io.Writer, settings *Settings, file string, chunkSize int) error {
	calls, err := readCalls(in, file)
	if err != nil {
		return err
	}

	conn, err := newConnection(ctx, settings, chunkSize)
	if err != nil {
		return err
	}

	results, err := conn.API(ctx, calls)
	if err != nil {
		return fmt.Errorf("batch call failed: %w", err)
	}

	batchResults := make([]BatchResult, len(results))
	for i, result := range results {
		batchResults[i] = BatchResult{Method: calls[i].Method, Result: result}
	}

	return writeOutput(out, settings.Output, batchResults, func(table *tablewriter.Table) {
		table.Header("#", "Method", "Result")

		for i, result := range batchResults {
			_ = table.Append(strconv.Itoa(i), result.Method, formatValue(result.Result))
		}
	})
}

// readCalls decodes the calls file, or stdin when file is "-".
func readCalls(in io.Reader, file string) ([]pryv.MethodCall, error) {
	var data []byte

	if file == "-" {
		read, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read calls from stdin: %w", err)
		}

		data = read
	} else {
		info, err := os.Stat(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read calls file: %w", err)
		}

		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, file)
		}

		// file is an explicit argument of the user running the CLI
		// #nosec G304
		data, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read calls file: %w", err)
		}
	}

	var calls []pryv.MethodCall

	err := json.Unmarshal(data, &calls)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidCallsFile, err)
	}

	for i, call := range calls {
		if call.Method == "" {
			return nil, fmt.Errorf("%w: call %d has no method", constants.ErrInvalidCallsFile, i)
		}
	}

	return calls, nil
}
