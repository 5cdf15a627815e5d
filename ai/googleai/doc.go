// Package googleai implements the ai interfaces with Google's Gemini models
// through langchaingo.
//
// Every request passes through a shared guard: an optional client-side rate
// limit (ai.Config.RequestsPerMinute) followed by a circuit breaker that opens
// after repeated throttling or outages. While open, calls fail fast with an
// ai.KindUnavailable error so callers can back off.
package googleai
