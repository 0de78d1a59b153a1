// Package google provides OAuth2 credentials for the Gmail API.
//
// Credentials combine an oauth2.Config with a TokenStore. Two stores are
// available: a JSON file under the user cache directory and the operating
// system keyring. Refreshed access tokens are written back to the store.
//
// The CredentialProvider interface is what the rest of the application
// depends on, so tests and alternative auth flows can supply their own.
package google
