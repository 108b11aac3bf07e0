// Package errors wraps failures with a component, a category and structured
// context so that callers can classify them and telemetry can group them.
//
// Errors are built fluently:
//
//	errors.New(err).
//		Component("sampler").
//		Category(errors.CategoryUpstream).
//		Context("park_id", id).
//		Build()
//
// The package also passes through the standard library helpers so that
// importing it in place of "errors" is enough.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"net"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors by failure domain.
type ErrorCategory string

// CategorizedError is implemented by errors that know their own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryGeneric       ErrorCategory = "generic"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryState         ErrorCategory = "state"

	CategoryNetwork      ErrorCategory = "network"
	CategoryTimeout      ErrorCategory = "timeout"
	CategoryCancellation ErrorCategory = "cancellation"

	CategoryUpstream  ErrorCategory = "upstream-feed"  // non-2xx replies from the queue-times feed
	CategoryDatabase  ErrorCategory = "database"       // relational store
	CategoryCache     ErrorCategory = "result-cache"   // cache backends
	CategoryAnalytics ErrorCategory = "crowd-analysis" // crowd level computation
	CategoryJobQueue  ErrorCategory = "job-queue"      // scheduled job execution
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// modulePrefix is stripped from caller package paths.
const modulePrefix = "github.com/tphakala/parkpulse/"

// reporting is true while an enabled telemetry reporter is installed.
var reporting atomic.Bool

// EnhancedError is an error annotated with where it happened and what kind
// of failure it is.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	component string
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return string(ee.Category)
	}
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// ErrorCategory implements CategorizedError.
func (ee *EnhancedError) ErrorCategory() ErrorCategory {
	return ee.Category
}

// GetComponent returns the component that built the error.
func (ee *EnhancedError) GetComponent() string {
	return ee.component
}

// GetCategory returns the category as a string.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// GetMessage returns the wrapped error message.
func (ee *EnhancedError) GetMessage() string {
	if ee.Err == nil {
		return ""
	}
	return ee.Err.Error()
}

// markReported records that telemetry has seen the error. It returns false
// when the error was already reported.
func (ee *EnhancedError) markReported() bool {
	return ee.reported.CompareAndSwap(false, true)
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the package or service the error belongs to.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category. When unset it is derived from the
// wrapped error.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context attaches a key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// NetworkContext records the endpoint class and timeout of a request.
// The URL itself is not stored.
func (eb *ErrorBuilder) NetworkContext(url string, timeout time.Duration) *ErrorBuilder {
	if url != "" {
		eb.Context("url_category", categorizeURL(url))
	}
	if timeout > 0 {
		eb.Context("timeout_seconds", timeout.Seconds())
	}
	return eb
}

// Timing records the operation name and its duration.
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the error and hands it to the telemetry reporter if one is
// enabled.
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = callerComponent(2)
	}
	category := eb.category
	if category == "" {
		category = detectCategory(eb.err)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: component,
	}

	if reporting.Load() {
		reportToTelemetry(ee)
	}
	return ee
}

// callerComponent derives a component name from the package of the caller
// skip frames above it, e.g. "datastore.repository".
func callerComponent(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return ComponentUnknown
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ComponentUnknown
	}
	return componentFromFunc(fn.Name())
}

// componentFromFunc turns a fully qualified function name into a component.
func componentFromFunc(funcName string) string {
	name := strings.TrimPrefix(funcName, modulePrefix)
	name = strings.TrimPrefix(name, "internal/")

	// Cut the function part: the first dot after the last slash.
	slash := strings.LastIndex(name, "/")
	if dot := strings.Index(name[slash+1:], "."); dot >= 0 {
		name = name[:slash+1+dot]
	}
	if name == "" || name == "main" {
		return ComponentUnknown
	}
	return strings.ReplaceAll(name, "/", ".")
}

// detectCategory classifies an error that was built without a category.
func detectCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var catErr CategorizedError
	if stderrors.As(err, &catErr) && catErr.ErrorCategory() != "" {
		return catErr.ErrorCategory()
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return CategoryCancellation
	case stderrors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return CategoryNetwork
	case strings.Contains(msg, "unmarshal"), strings.Contains(msg, "invalid character"):
		return CategoryFileParsing
	}
	return CategoryGeneric
}

// categorizeURL reduces a URL to its scheme class.
func categorizeURL(url string) string {
	scheme, _, found := strings.Cut(strings.ToLower(url), "://")
	if !found {
		return "other-protocol"
	}
	switch scheme {
	case "http", "https", "nats":
		return scheme + "-endpoint"
	default:
		return "other-protocol"
	}
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == CategoryNetwork || ee.Category == CategoryTimeout
	}
	switch detectCategory(err) {
	case CategoryNetwork, CategoryTimeout:
		return true
	default:
		return false
	}
}

// NewStd is errors.New from the standard library.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap is errors.Unwrap from the standard library.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join is errors.Join from the standard library.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory reports whether err wraps an EnhancedError of category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return stderrors.As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether err wraps a CategoryNotFound error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
