// ABOUTME: Result type returned by every tool handler
// ABOUTME: Always carries success and message, plus tool-specific fields

package tools

import "encoding/json"

// Result is the mapping a tool handler returns. It always includes
// "success" (bool) and "message" (string); everything else is
// tool-specific.
type Result map[string]any

// OK builds a successful Result with the given message.
func OK(message string) Result {
	return Result{"success": true, "message": message}
}

// Fail builds a failed Result with the given message.
func Fail(message string) Result {
	return Result{"success": false, "message": message}
}

// With adds a tool-specific field and returns the Result for chaining.
func (r Result) With(key string, value any) Result {
	r[key] = value
	return r
}

// Success reports the value of the "success" field.
func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// Message returns the "message" field, or empty.
func (r Result) Message() string {
	msg, _ := r["message"].(string)
	return msg
}

// JSON serializes the Result for a tool-role message body. A result
// that somehow fails to marshal degrades to a minimal failure payload.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"message":"unserializable tool result"}`
	}
	return string(data)
}
