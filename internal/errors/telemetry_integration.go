package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every error built while it is enabled.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter forwards errors to Sentry with credentials and query
// strings scrubbed.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a Sentry reporter.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry initializes the Sentry SDK and installs a SentryReporter.
// An empty DSN leaves telemetry disabled.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		SetTelemetryReporter(nil)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return New(err).
			Component("telemetry").
			Category(CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// IsEnabled reports whether the reporter sends events.
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends ee to Sentry once.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || !ee.markReported() {
		return
	}

	event := buildEvent(ee)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessageForPrivacy(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{ee.GetComponent(), string(ee.Category), errorTitle(ee)})
		sentry.CaptureEvent(event)
	})
}

// buildEvent converts ee into a scrubbed Sentry event.
func buildEvent(ee *EnhancedError) *sentry.Event {
	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.GetMessage()))
	title := errorTitle(ee)

	event := sentry.NewEvent()
	event.Message = message
	event.Level = levelFor(ee.Category)
	event.Exception = []sentry.Exception{{Type: title, Value: message}}
	return event
}

var categoryTitles = map[ErrorCategory]string{
	CategoryValidation:    "Validation Error",
	CategoryConfiguration: "Configuration Error",
	CategorySystem:        "System Error",
	CategoryFileIO:        "File Error",
	CategoryFileParsing:   "Parse Error",
	CategoryNetwork:       "Network Error",
	CategoryTimeout:       "Timeout",
	CategoryUpstream:      "Upstream Feed Error",
	CategoryDatabase:      "Database Error",
	CategoryCache:         "Cache Error",
	CategoryAnalytics:     "Crowd Analysis Error",
	CategoryJobQueue:      "Job Error",
}

// errorTitle names an error as "<Component> <Category title> <Operation>",
// e.g. "Sampler Upstream Feed Error Fetch Queue Times".
func errorTitle(ee *EnhancedError) string {
	var parts []string

	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, words(c))
	}
	if t, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, t)
	} else if ee.Category != "" {
		parts = append(parts, words(string(ee.Category)))
	}
	if op, ok := ee.Context["operation"].(string); ok && op != "" {
		parts = append(parts, words(op))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

// words title-cases an identifier split on '_', '-' and '.'.
func words(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}

// levelFor maps categories to Sentry levels. Transient and per-park
// failures are warnings.
func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryUpstream, CategoryCache, CategoryCancellation:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	telemetryMu       sync.RWMutex
	telemetryReporter TelemetryReporter
)

// SetTelemetryReporter installs reporter. A nil or disabled reporter turns
// reporting off.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	telemetryReporter = reporter
	reporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the installed reporter.
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return telemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex    = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	userInfoRegex    = regexp.MustCompile(`([a-z][a-z0-9+.-]*://)[^:@/\s]+:[^@/\s]+@`)
	mysqlDSNRegex    = regexp.MustCompile(`\b[^:@/\s]+:[^@/\s]+@tcp\(`)
	secretParamRegex = regexp.MustCompile(`(?i)\b(api[_-]?key|token|password|passwd|secret)[=:]\S+`)
	longHexRegex     = regexp.MustCompile(`[0-9a-fA-F]{32,}`)
)

// scrubMessageForPrivacy removes query strings, URL and DSN credentials and
// secret-looking values from a message.
func scrubMessageForPrivacy(message string) string {
	s := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	s = userInfoRegex.ReplaceAllString(s, "${1}[CREDENTIALS_REDACTED]@")
	s = mysqlDSNRegex.ReplaceAllString(s, "[CREDENTIALS_REDACTED]@tcp(")
	s = secretParamRegex.ReplaceAllString(s, "$1=[REDACTED]")
	return longHexRegex.ReplaceAllString(s, "[HEX_REDACTED]")
}
