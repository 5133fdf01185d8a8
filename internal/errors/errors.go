// Package errors provides the closed set of error kinds the gateway can
// surface to a caller. Every error that crosses a component boundary is
// constructed here; raw driver/engine errors are wrapped before they leave
// the adapter layer so a DSN or credential never reaches a response.
package errors

import "fmt"

// Kind is the stable, closed set of error categories a caller can branch on.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindAuthRequired    Kind = "AuthRequired"
	KindForbidden       Kind = "Forbidden"
	KindDatasetNotFound Kind = "DatasetNotFound"
	KindDimensionNotFound Kind = "DimensionNotFound"
	KindMeasureNotFound Kind = "MeasureNotFound"
	KindPlanError       Kind = "PlanError"
	KindBuildError      Kind = "BuildError"
	KindConfigError     Kind = "ConfigError"
	KindConnectionError Kind = "ConnectionError"
	KindQueryError      Kind = "QueryError"
	KindTimeout         Kind = "Timeout"
	KindCoalesceTimeout Kind = "CoalesceTimeout"
	KindCacheUnavailable Kind = "CacheUnavailable"
	KindInternal        Kind = "Internal"
)

// GatewayError is the single wrapped error type used across the gateway.
// Fields carry the user-visible failure shape: Kind (the code), Message,
// Suggestion (the hint), RequestID — plus Reason/Cause for internal
// diagnostics.
type GatewayError struct {
	Kind       Kind
	Message    string
	Reason     string
	Suggestion string
	RequestID  string
	Cause      error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &GatewayError{Kind: KindX}) style matching on Kind.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message, reason, suggestion string, cause error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Reason: reason, Suggestion: suggestion, Cause: cause}
}

// NewValidation reports a guard failure (step 1 of the pipeline).
func NewValidation(reason string) *GatewayError {
	return New(KindValidation, "request failed validation", reason,
		"reduce dimensions/metrics/filter depth or limit to within configured bounds", nil)
}

// NewAuthRequired reports a missing or unparsable credential.
func NewAuthRequired(reason string) *GatewayError {
	return New(KindAuthRequired, "authentication required", reason, "supply a valid credential", nil)
}

// NewForbidden reports a role denied access to a dataset (guard step 0).
func NewForbidden(role, dataset string) *GatewayError {
	return New(KindForbidden, fmt.Sprintf("role %q may not query dataset %q", role, dataset),
		"role is not on the dataset's allowed-role list", "request access from the dataset owner", nil)
}

// NewDatasetNotFound reports that the catalog collaborator has no such dataset.
func NewDatasetNotFound(id string) *GatewayError {
	return New(KindDatasetNotFound, fmt.Sprintf("dataset not found: %s", id),
		"no dataset registered with this id", "list available datasets via the catalog", nil)
}

// NewDimensionNotFound reports an unresolved dimension name.
func NewDimensionNotFound(name string) *GatewayError {
	return New(KindDimensionNotFound, fmt.Sprintf("unknown dimension: %s", name),
		"name does not match any declared dimension or calculated field", "check the dataset's field list", nil)
}

// NewMeasureNotFound reports an unresolved measure name.
func NewMeasureNotFound(name string) *GatewayError {
	return New(KindMeasureNotFound, fmt.Sprintf("unknown measure: %s", name),
		"name does not match any declared measure or calculated field", "check the dataset's field list", nil)
}

// NewPlanError reports a join-planning or resolution failure, tagged with
// the compiler state at the time of failure.
func NewPlanError(step, reason string) *GatewayError {
	return New(KindPlanError, fmt.Sprintf("planning failed at step %s", step), reason,
		"verify the ERD connects all tables required by the query", nil)
}

// NewUnreachableTables reports tables the join planner could not connect.
func NewUnreachableTables(tables []string) *GatewayError {
	return New(KindPlanError, "unreachable tables in join plan",
		fmt.Sprintf("no active-edge path from the anchor table to: %v", tables),
		"add an active ERD edge connecting these tables", nil)
}

// NewBuildError reports a SQL assembly or parse failure in C2.
func NewBuildError(reason string, cause error) *GatewayError {
	return New(KindBuildError, "failed to build SQL", reason, "", cause)
}

// NewConfigError reports a misconfigured dataset (e.g. bad RLS column).
func NewConfigError(reason string) *GatewayError {
	return New(KindConfigError, "dataset misconfigured", reason, "fix the dataset definition in the catalog", nil)
}

// NewConnectionError reports an adapter connect failure; callers must evict
// the adapter from the registry on receipt of this kind.
func NewConnectionError(engine string, cause error) *GatewayError {
	return New(KindConnectionError, fmt.Sprintf("cannot connect to %s", engine),
		"", "check source configuration and network reachability", cause)
}

// NewQueryError reports an adapter execution failure.
func NewQueryError(engine string, cause error) *GatewayError {
	return New(KindQueryError, fmt.Sprintf("query execution failed on %s", engine), "", "", cause)
}

// NewTimeout reports a deadline exceeded during adapter execution.
func NewTimeout(engine string, after string) *GatewayError {
	return New(KindTimeout, fmt.Sprintf("query on %s exceeded deadline", engine),
		fmt.Sprintf("no result after %s", after), "reduce query scope or raise the dataset timeout", nil)
}

// NewCoalesceTimeout reports a single-flight follower giving up without promoting.
func NewCoalesceTimeout(fingerprint string) *GatewayError {
	return New(KindCoalesceTimeout, "timed out waiting for in-flight query",
		fmt.Sprintf("fingerprint %s had no result before WAIT_TIMEOUT", fingerprint), "retry the request", nil)
}

// NewCacheUnavailable reports a cache backend outage; this kind is always
// logged and swallowed by C5, never surfaced to a caller.
func NewCacheUnavailable(cause error) *GatewayError {
	return New(KindCacheUnavailable, "cache backend unavailable", "", "", cause)
}

// NewInternal wraps an unexpected failure that doesn't fit another kind.
func NewInternal(reason string, cause error) *GatewayError {
	return New(KindInternal, "internal error", reason, "", cause)
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *GatewayError, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var ge *GatewayError
	for err != nil {
		if g, ok := err.(*GatewayError); ok {
			ge = g
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ge == nil {
		return "", false
	}
	return ge.Kind, true
}
