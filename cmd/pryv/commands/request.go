package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
	"github.com/spf13/cobra"
)

// RequestOptions describe a single call on the current API endpoint.
type RequestOptions struct {
	Method string
	Path   string
	Query  []string
	Data   string
	Raw    bool
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	options := RequestOptions{Method: http.MethodGet}

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "GET a path of the API endpoint",
		Long:  "Send a GET request relative to the API endpoint and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = args[0]

			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runRequest(cmd.Context(), cmd.OutOrStdout(), settings, options)
		},
	}

	cmd.Flags().StringArrayVarP(&options.Query, "query", "q", nil, "query parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&options.Raw, "raw", false, "print the response as received, without meta handling")

	return cmd
}

// NewPostCommand creates the post command.
func NewPostCommand() *cobra.Command {
	options := RequestOptions{Method: http.MethodPost}

	cmd := &cobra.Command{
		Use:   "post PATH",
		Short: "POST JSON to a path of the API endpoint",
		Long:  "Send a POST request with a JSON body relative to the API endpoint and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = args[0]

			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runRequest(cmd.Context(), cmd.OutOrStdout(), settings, options)
		},
	}

	cmd.Flags().StringVarP(&options.Data, "data", "d", "{}", "JSON request body")
	cmd.Flags().StringArrayVarP(&options.Query, "query", "q", nil, "query parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&options.Raw, "raw", false, "print the response as received, without meta handling")

	return cmd
}

func runRequest(ctx context.Context, out io.Writer, settings *Settings, options RequestOptions) error {
	query, err := parseQuery(options.Query)
	if err != nil {
		return err
	}

	var body interface{}

	if options.Method == http.MethodPost {
		err = json.Unmarshal([]byte(options.Data), &body)
		if err != nil {
			return fmt.Errorf("invalid --data: %w", err)
		}
	}

	conn, err := newConnection(ctx, settings, 0)
	if err != nil {
		return err
	}

	if options.Raw {
		return runRawRequest(ctx, out, conn, options, query, body)
	}

	var result map[string]interface{}

	if options.Method == http.MethodPost {
		result, err = conn.Post(ctx, options.Path, body, query)
	} else {
		result, err = conn.Get(ctx, options.Path, query)
	}

	if err != nil {
		return fmt.Errorf("%s %s: %w", options.Method, options.Path, err)
	}

	return writeOutput(out, settings.Output, result, mapTable(result))
}

func runRawRequest(ctx context.Context, out io.Writer, conn pryv.Connection, options RequestOptions, query url.Values, body interface{}) error {
	var (
		resp *pryv.RawResponse
		err  error
	)

	if options.Method == http.MethodPost {
		resp, err = conn.PostRaw(ctx, options.Path, body, query)
	} else {
		resp, err = conn.GetRaw(ctx, options.Path, query)
	}

	if err != nil {
		return fmt.Errorf("%s %s: %w", options.Method, options.Path, err)
	}

	_, _ = fmt.Fprintf(out, "HTTP %d\n", resp.StatusCode)
	_, _ = out.Write(resp.Body)
	_, _ = fmt.Fprintln(out)

	return nil
}
