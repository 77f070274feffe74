package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fivetwenty-io/pryv-client/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// LoginOptions are the credentials and identity sent to auth/login.
type LoginOptions struct {
	Username string
	Password string
	AppID    string
	Origin   string
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	options := LoginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a Pryv platform",
		Long:  "Exchange a username and password for a token and save the resulting API endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := promptCredentials(cmd.InOrStdin(), cmd.OutOrStdout(), &options)
			if err != nil {
				return err
			}

			settings := currentSettings()
			defer reportCalls(cmd.ErrOrStderr(), settings)

			return runLogin(cmd.Context(), cmd.OutOrStdout(), settings, options)
		},
	}

	cmd.Flags().StringVarP(&options.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&options.Password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&options.AppID, "app-id", "pryv-cli", "application id sent with the login")
	cmd.Flags().StringVar(&options.Origin, "origin", "", "Origin header (defaults to the platform register URL)")

	return cmd
}

// promptCredentials asks for whatever the flags left empty. The password is
// read without echo when stdin is a terminal.
func promptCredentials(in io.Reader, out io.Writer, options *LoginOptions) error {
	reader := bufio.NewReader(in)

	if options.Username == "" {
		_, _ = fmt.Fprint(out, "Username: ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read username: %w", err)
		}

		options.Username = strings.TrimSpace(line)
	}

	if options.Password != "" {
		return nil
	}

	_, _ = fmt.Fprint(out, "Password: ")

	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		password, err := term.ReadPassword(int(file.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		_, _ = fmt.Fprintln(out)
		options.Password = string(password)

		return nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read password: %w", err)
	}

	options.Password = strings.TrimRight(line, "\r\n")

	return nil
}

func runLogin(ctx context.Context, out io.Writer, settings *Settings, options LoginOptions) error {
	service, release, err := newService(settings)
	if err != nil {
		return err
	}
	defer release()

	conn, err := service.Login(ctx, options.Username, options.Password, options.AppID, options.Origin)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	endpoint := conn.Endpoint()
	apiKey := apiKeyFor(endpoint.Endpoint)

	tokenManager := auth.NewConfigTokenManager(
		NewConfigPersister(settings.ConfigFile, options.Username, settings.ServiceInfoURL),
		apiKey, endpoint.Endpoint, "")

	err = tokenManager.SetToken(endpoint.Endpoint, endpoint.Token)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Logged in as %s\n", options.Username)
	_, _ = fmt.Fprintf(out, "API endpoint: %s (saved as %s)\n", endpoint.Endpoint, apiKey)

	return nil
}
