package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teemow/attachfinder/internal/config"
	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/google"
	"github.com/teemow/attachfinder/internal/search"
	"github.com/teemow/attachfinder/internal/server"
)

// Output formats.
const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func newSearchCmd() *cobra.Command {
	var (
		pageToken string
		output    string
		mimeTypes string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search for messages with attachments",
		Long: `Run one page of an attachment search and print it.

"has:attachment" is added to the query. Pass the printed nextPageToken
with --page-token to fetch the following page. Messages that could not be
processed are reported on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputJSON && output != outputYAML {
				return fmt.Errorf("unsupported output format: %s (supported: json, yaml)", output)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			creds, err := a.credentials()
			if err != nil {
				return fmt.Errorf("failed to open token store: %w", err)
			}
			if !creds.HasToken() {
				return fmt.Errorf("%w: run 'attachfinder auth login' or visit %s", google.ErrNoToken, creds.AuthURL())
			}

			session, err := server.NewGmailSessionFactory(creds, a.sessionOptions(nil))(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create Gmail session: %w", err)
			}

			page, err := session.Search.Search(cmd.Context(), search.Request{
				Query:     args[0],
				PageToken: pageToken,
				PageSize:  a.cfg.Search.PageSize,
			})
			if err != nil {
				return err
			}

			filterAttachments(page, parseCommaSeparatedList(mimeTypes))
			reportExclusions(cmd.ErrOrStderr(), page)
			return writePage(cmd.OutOrStdout(), page, output)
		},
	}

	cmd.Flags().StringVar(&pageToken, "page-token", "", "Continuation token from a previous page")
	cmd.Flags().Int("page-size", config.DefaultConfig().Search.PageSize, "Message ids examined per page")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "Output format: json or yaml")
	cmd.Flags().StringVar(&mimeTypes, "mime-types", "", "Only print attachments of these MIME types (comma-separated)")
	addSearchFlags(cmd)

	return cmd
}

// filterAttachments keeps only the allowed MIME types and drops emails left
// without attachments. An empty list keeps everything.
func filterAttachments(page *search.Page, mimeTypes []string) {
	if len(mimeTypes) == 0 {
		return
	}
	emails := page.Emails[:0]
	for _, email := range page.Emails {
		kept := email.Attachments[:0]
		for _, att := range email.Attachments {
			if gmail.ValidateMimeType(att.MimeType, mimeTypes) {
				kept = append(kept, att)
			}
		}
		if len(kept) > 0 {
			email.Attachments = kept
			emails = append(emails, email)
		}
	}
	page.Emails = emails
}

func reportExclusions(w io.Writer, page *search.Page) {
	for _, ex := range page.Excluded {
		fmt.Fprintf(w, "warning: skipped message %s (%s): %s\n", ex.MessageID, ex.Stage, ex.Reason)
	}
	if page.Exhausted {
		fmt.Fprintln(w, "warning: scan stopped at the depth limit, results may be incomplete")
	}
}

func writePage(w io.Writer, page *search.Page, format string) error {
	if format == outputYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(page); err != nil {
			return fmt.Errorf("failed to encode page: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(page); err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	return nil
}

// parseCommaSeparatedList splits a comma-separated string into a slice,
// trimming whitespace and dropping empty entries.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
