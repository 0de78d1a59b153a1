package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google OAuth token",
	}

	cmd.PersistentFlags().String("token-store", "", "Token store: file or keyring")
	cmd.PersistentFlags().String("token-path", "", "Token file for the file token store")

	cmd.AddCommand(newAuthURLCmd(), newAuthLoginCmd(), newAuthLogoutCmd(), newAuthStatusCmd())
	return cmd
}

func newAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the consent page URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			creds, err := a.credentials()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), creds.AuthURL())
			return nil
		},
	}
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [CODE]",
		Short: "Exchange an authorization code and store the token",
		Long: `Exchange an authorization code for a token and store it.

Without CODE the consent URL is printed and the code is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.cfg.Google.OAuth().Validate(); err != nil {
				return err
			}
			creds, err := a.credentials()
			if err != nil {
				return err
			}

			var code string
			if len(args) == 1 {
				code = args[0]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Visit this URL in your browser and authorize access:\n\n  %s\n\n", creds.AuthURL())
				code, err = promptCode(cmd.InOrStdin(), cmd.ErrOrStderr(), isTerminal(cmd.InOrStdin()))
				if err != nil {
					return err
				}
			}

			if err := creds.Exchange(cmd.Context(), code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Authorization successful, token saved.")
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			creds, err := a.credentials()
			if err != nil {
				return err
			}
			if err := creds.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			creds, err := a.credentials()
			if err != nil {
				return err
			}
			if creds.HasToken() {
				fmt.Fprintf(cmd.OutOrStdout(), "Authenticated (%s token store)\n", a.cfg.Token.Store)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated. Run 'attachfinder auth login'.")
			return nil
		},
	}
}

// promptCode reads one authorization code line. The prompt is only shown
// when r is a terminal.
func promptCode(r io.Reader, w io.Writer, interactive bool) (string, error) {
	if interactive {
		fmt.Fprint(w, "Authorization code: ")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("authorization code is required")
	}
	return code, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
