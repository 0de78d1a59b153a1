package server

import (
	"context"
	"log/slog"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/google"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/search"
)

// GmailSessionOptions configures sessions backed by the Gmail API.
type GmailSessionOptions struct {
	Client gmail.Options

	// MaxDepth bounds the continuation pages one scan follows.
	MaxDepth int

	// FromPayload resolves attachments from the batch-fetched payload
	// instead of one messages.get call per message.
	FromPayload bool

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// NewGmailSessionFactory returns a factory that wires the Gmail client into
// a search service.
func NewGmailSessionFactory(creds google.CredentialProvider, opts GmailSessionOptions) SessionFactory {
	return func(ctx context.Context) (*Session, error) {
		clientOpts := opts.Client
		if clientOpts.Logger == nil {
			clientOpts.Logger = opts.Logger
		}
		if clientOpts.Metrics == nil {
			clientOpts.Metrics = opts.Metrics
		}

		client, err := gmail.NewClient(ctx, creds, clientOpts)
		if err != nil {
			return nil, err
		}

		var resolver search.AttachmentResolver = client
		if opts.FromPayload {
			resolver = gmail.PayloadResolver{}
		}

		svc := search.NewService(
			gmail.NewScanner(client, opts.MaxDepth, opts.Logger),
			client,
			resolver,
			search.Options{Logger: opts.Logger, Metrics: opts.Metrics},
		)
		return &Session{Search: svc, Mailbox: client}, nil
	}
}
