package authcore

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the authentication core.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication core.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSubjectNotFound is an exported constant or variable used by the authentication core.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubjectDisabled is an exported constant or variable used by the authentication core.
	ErrSubjectDisabled = errors.New("subject disabled")
	// ErrStrategyNotConfigured is an exported constant or variable used by the authentication core.
	ErrStrategyNotConfigured = errors.New("credential strategy not configured")
	// ErrProvisioningDisabled is an exported constant or variable used by the authentication core.
	ErrProvisioningDisabled = errors.New("identity provisioning disabled")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication core.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is an exported constant or variable used by the authentication core.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshInvalid is an exported constant or variable used by the authentication core.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is an exported constant or variable used by the authentication core.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrTokenInvalid is an exported constant or variable used by the authentication core.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrLogoutFailed is an exported constant or variable used by the authentication core.
	ErrLogoutFailed = errors.New("logout failed")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication core.
	ErrStoreUnavailable = errors.New("refresh token store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication core.
	ErrEngineNotReady = errors.New("engine not initialized")
)
