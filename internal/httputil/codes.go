package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeEmailRequired       = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat  = "INVALID_EMAIL_FORMAT"
	CodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	CodeEmailAlreadyExists  = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	CodeInvalidResetToken   = "INVALID_OR_EXPIRED_TOKEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeIdentityConflict    = "IDENTITY_CONFLICT"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternalError       = "INTERNAL_ERROR"
)
