// Package failure holds the error kinds shared by the workbook stack.
//
// Components wrap one of the sentinels below so callers can branch with
// errors.Is without knowing which backend produced the failure.
package failure

import "errors"

var (
	// ErrConfig marks a required configuration value that is absent.
	ErrConfig = errors.New("configuration missing")
	// ErrAuth marks a rejected or failed credential exchange.
	ErrAuth = errors.New("authentication failed")
	// ErrResolution marks a file or site lookup that did not yield an identifier.
	ErrResolution = errors.New("workbook resolution failed")
	// ErrRemote marks a network error, timeout or non-success status on a workbook call.
	ErrRemote = errors.New("remote call failed")
	// ErrWindowFull marks a result window with no empty row left.
	ErrWindowFull = errors.New("result window full")
)

const (
	CodeConfigMissing    = "config_missing"
	CodeAuthFailed       = "auth_failed"
	CodeResolutionFailed = "resolution_failed"
	CodeRemoteFailed     = "remote_failed"
	CodeWindowFull       = "window_full"
	CodeInternal         = "internal_error"
	CodeOK               = "ok"
)

// Code maps err onto a stable snake_case code for metric labels and JSON bodies.
func Code(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrConfig):
		return CodeConfigMissing
	case errors.Is(err, ErrAuth):
		return CodeAuthFailed
	case errors.Is(err, ErrResolution):
		return CodeResolutionFailed
	case errors.Is(err, ErrWindowFull):
		return CodeWindowFull
	case errors.Is(err, ErrRemote):
		return CodeRemoteFailed
	default:
		return CodeInternal
	}
}

// Permanent reports whether retrying err cannot help. Missing configuration
// and rejected credentials stay that way until the process is reconfigured.
func Permanent(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrAuth)
}
