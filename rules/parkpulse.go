//go:build ruleguard

// Package gorules defines custom linter rules for ParkPulse.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// domainPackages are the packages that report errors through internal/errors.
const domainPackages = `internal/(app|cache|catalog|crowd|datastore|httpserver|queuetimes|sampler|scheduler)`

// EnhancedErrors flags fmt.Errorf in domain packages, which must build
// categorized errors so telemetry and callers can classify failures.
//
//	return fmt.Errorf("fetch failed: %w", err)
//
// becomes
//
//	return errors.New(err).Component(serviceName).Category(errors.CategoryUpstream).Build()
func EnhancedErrors(m dsl.Matcher) {
	m.Import("fmt")

	m.Match(`fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(domainPackages) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the internal/errors builder instead of fmt.Errorf")
}

// GoJSON flags encoding/json Marshal and Unmarshal calls outside tests.
// Cache payloads and feed documents are encoded with goccy/go-json.
func GoJSON(m dsl.Matcher) {
	m.Import("encoding/json")

	m.Match(`json.Marshal($x)`, `json.Unmarshal($data, $dest)`).
		Where(m.File().PkgPath.Matches(`internal/`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("import github.com/goccy/go-json instead of encoding/json")
}

// ContextSleep flags time.Sleep in domain code. Delays between retries and
// batches must return early when the context is canceled.
func ContextSleep(m dsl.Matcher) {
	m.Import("time")

	m.Match(`time.Sleep($d)`).
		Where(m.File().PkgPath.Matches(domainPackages) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use sleepContext(ctx, $d) so the wait ends on cancellation")
}

// DateOnlyLayout flags the literal date layout used for cache keys and
// hour buckets.
func DateOnlyLayout(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02")`).
		Report(`use $t.Format(time.DateOnly)`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report(`use time.Parse(time.DateOnly, $s)`).
		Suggest(`time.Parse(time.DateOnly, $s)`)
}

// WaitGroupGo suggests wg.Go for the manual Add/Done goroutine pattern.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body })").
		Suggest("$wg.Go(func() { $body })")
}
