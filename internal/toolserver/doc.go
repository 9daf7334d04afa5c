// Package toolserver exposes the local tool registry over HTTP.
//
// # Protocol
//
// One endpoint: POST with a JSON body of the form
//
//	{"function_name": "...", "arguments": {...}}
//
// The response is the tool result object, always carrying "success"
// and "message". Unknown tools and handler failures come back as
// failed results with status 200; only transport-level problems
// (bad method, unparseable body) use error status codes.
//
// The server runs on its own listener goroutine and shares the same
// Registry the conversation engine executes against, so external
// processes can invoke the same local tools.
package toolserver
