// Package search composes the Gmail scanner, batch fetcher and attachment
// resolver into one paginated attachment search.
//
// A search runs in four sequential stages:
//
//  1. Scan: collect up to PageSize message ids for "{query} AND has:attachment".
//  2. Fetch: retrieve the full messages through the batch endpoint.
//  3. Resolve: look up the attachments of every fetched message concurrently.
//  4. Assemble: drop messages without attachments and extract sender and date.
//
// Per-message failures never fail the page. They are logged and reported in
// Page.Excluded so that an empty page caused by failures can be told apart
// from an empty page caused by the query.
package search
