package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the Google OAuth scopes requested during consent.
// Searching and downloading attachments only needs read access.
var DefaultOAuthScopes = []string{
	gmail.GmailReadonlyScope,
}
