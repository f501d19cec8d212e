package dictload

import "github.com/gravwell/raddict/dict"

// EnumFixup is a deferred VALUE resolution (spec.md §3 "Fixup record —
// enum"): an enum declaration encountered before its attribute was
// declared.
type EnumFixup struct {
	File     string
	Line     int
	AttrName string
	Alias    string
	RawValue string
}

// GroupFixup is a deferred group-ref resolution (spec.md §3 "Fixup record —
// group"): a ref= clause on a group attribute whose referent is not yet in
// scope or lives in a dictionary not yet loaded.
type GroupFixup struct {
	File   string
	Line   int
	Target *dict.Attribute
	RawRef string
}

// FixupPool is the scratch arena of spec.md §3/§5, scoped to a single
// protocol's load. Per Design Notes "Fixup storage", it's an append-only
// slice rather than a linked list: resolution always proceeds in
// declaration order and nothing is ever removed mid-load.
type FixupPool struct {
	Enums  []EnumFixup
	Groups []GroupFixup
}

func newFixupPool() *FixupPool { return &FixupPool{} }

// loadState is the per-load context object of spec.md §4.4: "State lives in
// a per-load context object holding the current dictionary pointer, a
// context stack of frames, the most recently touched attribute, the last
// attribute name used for a VALUE (a hot-path cache), and the fixup pool."
//
// One loadState is created per top-level Loader.Load/LoadProtocol call and
// threaded unchanged through every $INCLUDE it recurses into (context
// stack depth and the open-protocol's fixup pool must survive file
// boundaries per spec.md §4.4 $INCLUDE semantics).
type loadState struct {
	dict *dict.Dictionary // current dictionary
	ctx  stack

	relativeAttr *dict.Attribute // most-recently-added TLV, for leading-dot OIDs

	valueCacheName string // hot-path cache for VALUE
	valueCacheAttr *dict.Attribute

	fixups *FixupPool

	// outerDict holds the dictionary BEGIN-PROTOCOL switched away from, so
	// END-PROTOCOL can restore it. BEGIN-PROTOCOL cannot nest (spec.md
	// §4.4), so a single slot suffices.
	outerDict *dict.Dictionary

	includeDepth int

	// curFile/curLine track the line currently being processed, for
	// diagnostics and fixup records.
	curFile string
	curLine int

	flagsBaseline perFileFlags // per-file FLAGS baseline
}

// perFileFlags holds the FLAGS directive's per-file baseline (spec.md §4.4
// FLAGS: "sets/clears a per-file baseline flag applied to subsequent
// declarations in the same file"). Keyed by file so a restored outer file
// after $INCLUDE returns to its own baseline rather than inheriting the
// included file's.
type perFileFlags struct {
	byFile map[string]bool
}

func newLoadState(d *dict.Dictionary) *loadState {
	return &loadState{
		dict:          d,
		fixups:        newFixupPool(),
		flagsBaseline: perFileFlags{byFile: make(map[string]bool)},
	}
}

func (s *loadState) internalBaseline() bool {
	return s.flagsBaseline.byFile[s.curFile]
}

func (s *loadState) setInternalBaseline(v bool) {
	s.flagsBaseline.byFile[s.curFile] = v
}
