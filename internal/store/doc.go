// Package store provides persistent conversation storage using SQLite.
//
// # Architecture
//
// The Store interface covers conversation and message persistence;
// SQLiteStore is its only production implementation. Messages are
// saved wholesale per conversation — the log in memory is the source
// of truth and each save replaces the stored copy — which keeps the
// write path simple and makes saves idempotent.
//
// # Debounced Saves
//
// Turns produce many small log changes in quick succession. Saver
// coalesces them: each Schedule resets a short timer, and the write
// happens once the conversation goes quiet (or on Flush/Close).
//
// # Data Models
//
// Conversation: id, title, timestamps. Message rows mirror
// chat.Message, with tool calls serialized as JSON.
package store
