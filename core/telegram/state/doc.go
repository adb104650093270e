// Package state stores per-chat conversation sessions for Telegram bots.
// It is domain-agnostic: the session payload is a type parameter and the
// backing store is either process memory or Redis.
package state
