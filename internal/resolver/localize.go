package resolver

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"nlsbundle/pkg/format"
)

// Fixed results of degraded lookup functions.
const (
	MessagesNotFound  = "Messages not found."
	UnsupportedFormat = "File bundle has unsupported format. See console for details"
	LoadFailed        = "Failed to load message bundle. See console for details."
)

// Key identifies a message: by position in a resolved bundle, or by name in source code
// that was not rewritten by extraction.
type Key struct {
	index      int
	name       string
	comment    []string
	positional bool
}

// Positional returns the key of the i-th message of a module.
func Positional(i int) Key {
	return Key{index: i, positional: true}
}

// Named returns a named key with optional translator comments.
func Named(name string, comment ...string) Key {
	return Key{name: name, comment: comment}
}

// IsPositional reports whether k addresses a message by index.
func (k Key) IsPositional() bool {
	return k.positional
}

// Index returns the message index of a positional key.
func (k Key) Index() int {
	return k.index
}

// Name returns the name of a named key.
func (k Key) Name() string {
	return k.name
}

// Comment returns the translator comments of a named key.
func (k Key) Comment() []string {
	return k.comment
}

func (k Key) String() string {
	if k.positional {
		return strconv.Itoa(k.index)
	}
	return k.name
}

// ParseKey reads a key from text: a non-negative integer is positional, anything else is named.
func ParseKey(text string) Key {
	if i, err := strconv.Atoi(text); err == nil && i >= 0 {
		return Positional(i)
	}
	return Named(text)
}

// LocalizeFunc returns the message for key, formatted with args. message is the
// source-language text used when no bundle supplies one.
type LocalizeFunc func(key Key, message string, args ...any) string

func (r *Resolver) devLocalize(_ Key, message string, args ...any) string {
	return format.Message(message, r.pseudo.Load(), args...)
}

func (r *Resolver) scopedLocalize(file string, messages []string) LocalizeFunc {
	return func(key Key, message string, args ...any) string {
		if key.positional {
			if key.index < 0 || key.index >= len(messages) {
				r.metrics.RecordOutOfRange()
				r.logger.Error("Broken localize call found. Index out of bounds",
					zap.String("file", file),
					zap.Int("index", key.index),
					zap.Int("messages", len(messages)),
					zap.Stack("stack"))
				return ""
			}
			return format.Message(messages[key.index], r.pseudo.Load(), args...)
		}

		r.logger.Warn(fmt.Sprintf("Message %s didn't get externalized correctly.", message),
			zap.String("file", file),
			zap.String("key", key.name))
		return format.Message(message, r.pseudo.Load(), args...)
	}
}

func constantLocalize(result string) LocalizeFunc {
	return func(Key, string, ...any) string {
		return result
	}
}
