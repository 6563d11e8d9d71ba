package embedder

import (
	"context"
	"errors"
	"strings"
)

// outcome is the classification of one backend call. Each attempt is
// classified exactly once; the retry loops branch on the outcome rather than
// re-inspecting raw error text.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeThrottled
	outcomeFatalConfig
	outcomeTransient
	outcomeCancelled
)

// throttlePatterns are rate-limit signals as the major embedding services
// spell them. Bedrock raises ThrottlingException, OpenAI-compatible services
// answer 429, NVIDIA NIM answers 429 or 503 with "too many requests".
var throttlePatterns = []string{
	"throttlingexception",
	"rate limit",
	"too many requests",
	"429",
	"slow down",
	"quota exceeded",
}

// fatalPatterns are misconfiguration and permission signals. Retrying these
// masks operator error, so they always propagate immediately.
var fatalPatterns = []string{
	"accessdeniedexception",
	"access denied",
	"validationexception",
	"invalid model",
	"model not found",
	"does not exist",
	"unauthorized",
	"not authorized",
	"invalid api key",
	"incorrect api key",
	"permission",
	"401",
	"403",
}

// classify maps a backend call result onto an outcome.
func classify(err error) outcome {
	if err == nil {
		return outcomeSuccess
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeCancelled
	}

	var throttleErr *ThrottleError
	if errors.As(err, &throttleErr) || errors.Is(err, ErrThrottled) {
		return outcomeThrottled
	}
	var configErr *ConfigError
	var deniedErr *AccessDeniedError
	if errors.As(err, &configErr) || errors.As(err, &deniedErr) {
		return outcomeFatalConfig
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range throttlePatterns {
		if strings.Contains(msg, pattern) {
			return outcomeThrottled
		}
	}
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return outcomeFatalConfig
		}
	}

	// Timeouts, connection resets, 5xx responses and everything else not
	// recognized above get the bounded transient retry treatment.
	return outcomeTransient
}

// asFatal wraps a backend error classified as fatal into the typed error the
// caller is expected to inspect, attaching remediation guidance.
func asFatal(err error) error {
	var configErr *ConfigError
	var deniedErr *AccessDeniedError
	if errors.As(err, &configErr) || errors.As(err, &deniedErr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"accessdeniedexception", "access denied", "unauthorized", "not authorized", "invalid api key", "incorrect api key", "permission", "401", "403"} {
		if strings.Contains(msg, pattern) {
			return NewAccessDeniedError(
				"embedding backend denied access: "+err.Error(),
				"verify the API key and that the credentials grant access to this model",
				err,
			)
		}
	}
	return NewConfigError(
		"embedding backend rejected the request: "+err.Error(),
		"verify the model identifier and request parameters are valid for this backend",
		err,
	)
}

// connectivityPatterns is the narrow allow-list of symptoms the failover
// recovery probe acts on. Only clearly transient connectivity faults
// qualify; anything else leaves the primary in cooldown.
var connectivityPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"broken pipe",
}

// isConnectivityError reports whether err looks like a transient
// connectivity failure rather than a service-level error.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connectivityPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
