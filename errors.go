package authlink

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const (
	TextCodeMalformedToken   = "AUTH_TOKEN_MALFORMED"
	TextCodeInvalidSignature = "AUTH_TOKEN_INVALID_SIGNATURE"
	TextCodeTokenExpired     = "AUTH_TOKEN_EXPIRED"
	TextCodeTokenEarly       = "AUTH_TOKEN_EARLY"
	TextCodeAudienceMismatch = "AUTH_TOKEN_AUDIENCE_MISMATCH"
	TextCodeTokenMissing     = "AUTH_TOKEN_MISSING"
	TextCodeTokenNotFound    = "AUTH_TOKEN_NOT_FOUND"
	TextCodeTokenRevoked     = "AUTH_TOKEN_REVOKED"
	TextCodeUserNotFound     = "AUTH_USER_NOT_FOUND"
	TextCodeStoreError       = "AUTH_STORE_ERROR"
	TextCodeIssuanceError    = "AUTH_ISSUANCE_ERROR"
	TextCodeNotAuthenticated = "AUTH_NOT_AUTHENTICATED"
	TextCodeValidation       = "AUTH_VALIDATION_ERROR"
	TextCodeAuthNotFound     = "AUTH_IDENTITY_NOT_FOUND"
)

// ErrMalformedToken is returned when a token is not a structurally valid JWT.
var ErrMalformedToken = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeMalformedToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidSignature is returned when a token signature does not verify.
var ErrInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when exp <= now.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenEarly is returned when now <= nbf.
var ErrTokenEarly = goerrors.New("token is not valid yet", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenEarly).
	WithCode(goerrors.CodeUnauthorized)

// ErrAudienceMismatch is returned when the aud claim is not the configured audience.
var ErrAudienceMismatch = goerrors.New("token cannot be accepted for this audience", goerrors.CategoryAuth).
	WithTextCode(TextCodeAudienceMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMissing is returned when a request carries no access token.
var ErrTokenMissing = goerrors.New("access token not present", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenNotFound is returned when usage tracking cannot find the stored token.
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned when the stored token has been revoked.
var ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned when the token subject or a link target has no user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrStore wraps persistence failures, including store timeouts.
var ErrStore = goerrors.New("identity store failure", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreError).
	WithCode(goerrors.CodeInternal)

// ErrIssuance is returned when an issued token could not be persisted.
var ErrIssuance = goerrors.New("token could not be created", goerrors.CategoryInternal).
	WithTextCode(TextCodeIssuanceError).
	WithCode(goerrors.CodeInternal)

// ErrNotAuthenticated is returned when a token is requested without an
// authenticated session.
var ErrNotAuthenticated = goerrors.New("you are not authorized", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeForbidden)

// ErrValidation is returned when auth attributes do not satisfy the schema.
var ErrValidation = goerrors.New("invalid auth attributes", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrAuthNotFound is returned when no auth matches a lookup.
var ErrAuthNotFound = goerrors.New("auth not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAuthNotFound).
	WithCode(goerrors.CodeNotFound)

func newError(base *goerrors.Error, source error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

func storeError(op string, err error) error {
	return newError(ErrStore, err, map[string]any{"operation": op})
}

func asRichError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}
	return richErr
}

// LogFields describes err as Logger key/value pairs, rendering rich error
// metadata as JSON.
func LogFields(err error) []any {
	richErr := asRichError(err)
	if richErr == nil {
		return []any{"error", err}
	}
	fields := []any{
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"category", richErr.Category,
	}
	if len(richErr.Metadata) > 0 {
		fields = append(fields, "details", print.MaybePrettyJSON(richErr.Metadata))
	}
	if richErr.Source != nil {
		fields = append(fields, "cause", richErr.Source.Error())
	}
	return fields
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	richErr := asRichError(err)
	return richErr != nil && richErr.TextCode == code
}

// IsTokenExpiredError reports whether err is ErrTokenExpired.
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError reports whether err is ErrMalformedToken.
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeMalformedToken)
}

func IsInvalidSignatureError(err error) bool {
	return HasTextCode(err, TextCodeInvalidSignature)
}

func IsTokenRevokedError(err error) bool {
	return HasTextCode(err, TextCodeTokenRevoked)
}

func IsUserNotFoundError(err error) bool {
	return HasTextCode(err, TextCodeUserNotFound)
}

func IsStoreError(err error) bool {
	return HasTextCode(err, TextCodeStoreError)
}

// IsValidationFailure reports whether err is one of the token rejection
// errors produced by ValidateToken or ValidateRequest.
func IsValidationFailure(err error) bool {
	switch {
	case HasTextCode(err, TextCodeMalformedToken),
		HasTextCode(err, TextCodeInvalidSignature),
		HasTextCode(err, TextCodeTokenExpired),
		HasTextCode(err, TextCodeTokenEarly),
		HasTextCode(err, TextCodeAudienceMismatch),
		HasTextCode(err, TextCodeTokenMissing),
		HasTextCode(err, TextCodeTokenNotFound),
		HasTextCode(err, TextCodeTokenRevoked),
		HasTextCode(err, TextCodeUserNotFound):
		return true
	}
	return false
}

// HTTPStatus maps an error to the status code a transport should send.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case HasTextCode(err, TextCodeNotAuthenticated):
		return http.StatusForbidden
	case HasTextCode(err, TextCodeValidation):
		return http.StatusBadRequest
	case HasTextCode(err, TextCodeAuthNotFound):
		return http.StatusNotFound
	case IsValidationFailure(err):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// PublicMessage is the user facing message for err. Internal causes never
// leak through it.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusOK:
		return ""
	case http.StatusForbidden:
		return "You are not authorized."
	case http.StatusBadRequest:
		return "Invalid request."
	case http.StatusNotFound:
		return "Not found."
	case http.StatusUnauthorized:
		return "Invalid or missing access token."
	}
	if HasTextCode(err, TextCodeIssuanceError) {
		return "JSON web token could not be created"
	}
	return "An unexpected error occurred"
}
