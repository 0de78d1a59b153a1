// Package gmail retrieves messages and attachments from the Gmail API.
//
// Three pieces make up the read path:
//   - Scanner collects message ids for a query across provider pages,
//     bounded by an explicit depth budget.
//   - Fetcher retrieves full messages through the multipart batch endpoint,
//     splitting large id lists into envelopes of at most BatchLimit requests
//     and correlating response parts back to ids by Content-ID.
//   - Client.ResolveAttachments and PayloadResolver list a message's
//     attachments; Client.GetAttachment downloads one.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, creds, gmail.Options{})
//	if err != nil {
//	    return err
//	}
//
//	scan, err := gmail.NewScanner(client, gmail.DefaultMaxDepth, logger).
//	    Scan(ctx, "invoice has:attachment", "", 10)
//	if err != nil {
//	    return err
//	}
//
//	res, err := client.FetchFull(ctx, scan.IDs)
package gmail
