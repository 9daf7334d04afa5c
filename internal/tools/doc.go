// Package tools is the registry of locally executable tools.
//
// # Overview
//
// The backend requests tools by name; this package maps names to
// handlers so registration is data, not a dispatch chain. Tools are
// grouped into packs (a scene pack, a project-files pack) and
// registered at startup. The engine and the local tool server share
// one Registry.
//
// # Handler contract
//
// A Handler receives the parsed argument mapping and returns a Result
// that always carries "success" and "message", plus arbitrary
// tool-specific fields. Handlers must be prompt — they run inline on
// the turn-advancing loop — and must not panic; Execute captures any
// panic and reports it as a failed Result.
package tools
