// Package dedupe provides identifier deduplication using a time-based
// cache, so stream events that repeat (tool batches, status lines) are
// only acted on once per window.
package dedupe
