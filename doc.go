// Package authlink issues and validates bearer tokens, links the auth
// records of several identity providers to one user, and tracks token usage
// and login attempts.
//
// Identity linking:
//   - Linker.LinkAuth attaches an Auth to a User. An unlinked Auth joins the
//     user that owns another Auth with the same email address, otherwise the
//     user matching the given criteria, created on demand. Relinking is
//     idempotent.
//   - Linker.AttachAuthToUser updates the Auth a user already has for a
//     provider in place, or creates one.
//
// Token lifecycle:
//   - TokenManager.IssueToken signs a token for the session user and stores
//     it. Tokens are HMAC signed JWTs whose issuer claim is
//     "<user id>|<discriminator>".
//   - TokenManager.ValidateToken checks signature, expiry, not-before and
//     audience in that order. ValidateRequest adds the stored token checks,
//     session binding and asynchronous usage tracking.
//   - Revocation is the only way to invalidate a token before it expires.
//
// Persistence goes through IdentityStore; BunStore implements it with bun
// and go-repository-bun. Transport adapters live under transport/.
package authlink
