// Package oauth2 manages the lifecycle of delegated Google credentials.
//
// The Manager turns a one-time authorization code into a stored credential,
// verifies the Google identity behind it, and hands out ClientHandles whose
// HTTP clients refresh the access token transparently. Every refreshed token
// passes through an identity guard before it is persisted: the rotated
// id_token must carry the same subject as the credential it updates, or the
// write is aborted and the triggering request fails with an
// IdentityMismatchError.
//
// Basic usage:
//
//	manager := oauth2.NewManager(oauth2.Config{
//		ClientID:     cfg.GoogleClientID,
//		ClientSecret: cfg.GoogleClientSecret,
//		RedirectURL:  cfg.GoogleRedirectURI,
//	}, store, oauth2.WithCache(cache))
//
//	tokens, err := manager.ExchangeCode(ctx, code)
//	identity, err := manager.VerifyIdentity(ctx, tokens.IDToken)
//	credential, err := manager.SaveTokens(ctx, tokens, identity, ref)
//
//	handle, err := manager.CreateClient(ctx, credential)
//	resp, err := handle.HTTPClient().Get(url)
//
// Revocation unlinks every stream that references the credential before the
// credential itself is deleted, so no stream ever points at a missing record.
// RevokeAsync runs the same sequence in the background and is what error
// classification uses when Google reports a grant as revoked.
//
// Access tokens can be shared between processes through a TokenCache. The
// Refresher keeps stored access tokens warm on a cron schedule.
package oauth2
