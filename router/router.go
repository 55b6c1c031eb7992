// Package router provides component-scoped log-severity routing.
//
// A Router maps hierarchical component paths to minimum severities and
// decides, per message, whether it should reach an output sink. The
// decision combines a cached global minimum (a cheap fast-reject
// pre-filter) with a per-path resolution over the rule set, so that the
// cost of a suppressed message stays near zero.
//
// # Basic Usage
//
// Create a router over a sink and set per-component thresholds:
//
//	sink, closer, err := console.New(console.DefaultConfig())
//	if err != nil {
//		panic(err)
//	}
//	if closer != nil {
//		defer closer.Close()
//	}
//
//	r := router.New(sink)
//	r.SetLevel(router.Path{"core"}, router.LevelWarn)
//	r.SetLevel(router.Path{"core", "io"}, router.LevelDebug)
//
//	r.Emit(router.Path{"core", "io"}, router.LevelDebug, "buffer flushed", "bytes", 4096)
//	r.Emit(router.Path{"core"}, router.LevelInfo, "not observable") // suppressed
//
// # Resolution
//
// A path resolves to the severity of its longest prefix that holds an
// explicit rule, falling back to the reserved default entry. The chain
// need not be contiguous: an unset intermediate prefix is skipped and the
// previous override still applies through it. Resolution cost is
// O(len(path)), independent of the rule-set size.
//
// # Lazy Emission
//
// Guard expensive message construction with IsEnabled, or let the router
// pay for it only when the message is observable:
//
//	r.EmitLazy(path, router.LevelDebug, func() (string, bool) {
//		return expensiveDump(state), true
//	})
//
// The producer runs exactly once when the gate passes and never when it
// fails. Returning false suppresses the sink call even after the producer
// ran.
//
// # Rule Files
//
// Rule sets can be loaded from CUE or YAML files with schema validation,
// and kept current at runtime with a RuleWatcher. See NewFromCUEFile,
// NewFromYAMLFile, and NewRuleWatcher.
//
// # Concurrency
//
// A Router's rule set and cached minimum are not internally synchronized.
// Concurrent gate checks (Emit, IsEnabled, EmitLazy) are safe while no
// mutation is in flight; SetLevel, SetEnabled, and WithMinLevel assume a
// single mutating owner or externally imposed exclusion.
package router

import (
	"fmt"
	"sort"
)

// Router routes messages to a sink according to a rule set keyed by
// hierarchical component paths. The sink reference is not owned; its
// lifetime is managed by whoever constructed the router.
type Router struct {
	rules     map[string]Level
	globalMin Level
	sink      Sink
	contextID string
}

// New creates a Router bound to the given sink. The rule set is seeded
// with the default entry at LevelInfo, so a fresh router passes Info and
// above for every path.
func New(sink Sink) *Router {
	return &Router{
		rules:     map[string]Level{Default.Key(): LevelInfo},
		globalMin: LevelInfo,
		sink:      sink,
	}
}

// SetContextID sets the calling-context identifier stamped on every
// message this router forwards. Intended for setup time, typically right
// after binding the router in a registry; it follows the router's
// single-owner mutation discipline.
func (r *Router) SetContextID(id string) {
	r.contextID = id
}

// ContextID returns the calling-context identifier, or "" if none was set.
func (r *Router) ContextID() string {
	return r.contextID
}

// GlobalMin returns the cached minimum over all rule values. A message
// below this severity cannot pass the gate for any path.
func (r *Router) GlobalMin() Level {
	return r.globalMin
}

// Rules returns a copy of the current rule set keyed by dotted path.
func (r *Router) Rules() map[string]Level {
	out := make(map[string]Level, len(r.rules))
	for k, v := range r.rules {
		out[k] = v
	}
	return out
}

// SetLevel establishes path as a rule accepting severity level and above.
// The cached global minimum is maintained incrementally: it only tightens
// in place, and a full rescan happens only when the previous value at
// this exact path was the unique current minimum and the new value is
// larger.
func (r *Router) SetLevel(path Path, level Level) error {
	if err := path.Validate(); err != nil {
		return err
	}
	key := path.Key()
	old, had := r.rules[key]
	r.rules[key] = level
	switch {
	case level < r.globalMin:
		r.globalMin = level
	case had && old == r.globalMin && level > r.globalMin:
		r.recomputeGlobalMin()
	}
	return nil
}

// SetEnabled switches a component on or off at the baseline severity.
// true maps to LevelInfo so baseline messages pass; false maps to
// LevelInfo+1 so messages exactly at baseline are suppressed while
// strictly higher severities remain enabled.
func (r *Router) SetEnabled(path Path, on bool) error {
	if on {
		return r.SetLevel(path, LevelInfo)
	}
	return r.SetLevel(path, LevelInfo+1)
}

// EffectiveLevel resolves the single minimum severity in force for path:
// the severity at the longest prefix of path present in the rule set, or
// the default entry when no prefix matches.
func (r *Router) EffectiveLevel(path Path) (Level, error) {
	if err := path.Validate(); err != nil {
		return 0, err
	}
	return r.effectiveLevel(path), nil
}

// effectiveLevel is the validated-path resolution core shared by the gate
// and EffectiveLevel.
func (r *Router) effectiveLevel(path Path) Level {
	level := r.rules[Default.Key()]
	key := ""
	for i, tok := range path {
		if i == 0 {
			key = tok
		} else {
			key += "." + tok
		}
		if l, ok := r.rules[key]; ok {
			level = l
		}
	}
	return level
}

// enabled is the gate predicate: the cached global minimum rejects first,
// and only then is the authoritative per-path resolution evaluated.
func (r *Router) enabled(path Path, level Level) bool {
	return level >= r.globalMin && level >= r.effectiveLevel(path)
}

// IsEnabled reports whether a message at the given severity for the given
// path would reach the sink. It has no side effect and is intended to
// guard caller-side expensive computation.
func (r *Router) IsEnabled(path Path, level Level) (bool, error) {
	if err := path.Validate(); err != nil {
		return false, err
	}
	return r.enabled(path, level), nil
}

// Emit forwards the message to the sink when the gate and the sink-local
// filter both pass. A filtered-out call returns nil and has no effect;
// sink errors propagate untouched.
func (r *Router) Emit(path Path, level Level, text string, attrs ...any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if !r.enabled(path, level) {
		return nil
	}
	return r.forward(path, level, text, attrs)
}

// Producer lazily constructs a message body. Returning false is the
// "no message" sentinel: the emission is suppressed even though the
// producer already ran.
type Producer func() (string, bool)

// EmitLazy invokes produce exactly once if and only if the gate passes,
// then forwards the result exactly as Emit would. When the gate fails the
// producer is never invoked; this is the core performance contract for
// expensive message construction.
func (r *Router) EmitLazy(path Path, level Level, produce Producer, attrs ...any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if !r.enabled(path, level) {
		return nil
	}
	text, ok := produce()
	if !ok {
		return nil
	}
	return r.forward(path, level, text, attrs)
}

// forward applies the sink-local filter and hands the message over.
// Source capture skips forward and its exported caller so the location
// points at the emission call site.
func (r *Router) forward(path Path, level Level, text string, attrs []any) error {
	if r.sink == nil {
		return nil
	}
	if !r.sink.ShouldAccept(level, path, r.contextID) {
		return nil
	}
	return r.sink.Handle(Message{
		Level:   level,
		Text:    text,
		Path:    path,
		Context: r.contextID,
		Source:  captureSource(2),
		Attrs:   attrs,
	})
}

// WithMinLevel overrides the cached global minimum for the duration of
// fn, then restores the prior value. The restore happens on normal
// return, error return, and panic alike, before anything propagates to
// the caller. No locking; single-owner discipline applies.
func (r *Router) WithMinLevel(level Level, fn func() error) error {
	old := r.globalMin
	r.globalMin = level
	defer func() {
		r.globalMin = old
	}()
	return fn()
}

// recomputeGlobalMin rescans all rule values. Only reached when a
// mutation may have invalidated the previous unique minimum.
func (r *Router) recomputeGlobalMin() {
	first := true
	for _, l := range r.rules {
		if first || l < r.globalMin {
			r.globalMin = l
			first = false
		}
	}
}

// sortedRuleKeys returns the rule-set keys in lexical order, used by the
// diagnostic tree renderer for stable sibling ordering.
func (r *Router) sortedRuleKeys() []string {
	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders a compact summary for debugging.
func (r *Router) String() string {
	return fmt.Sprintf("router{rules: %d, globalMin: %s}", len(r.rules), r.globalMin)
}
