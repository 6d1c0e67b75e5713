// Package symbols tracks variable declarations across the global region of a
// build script and the currently active build stage.
package symbols

import (
	"slices"

	"github.com/krmcbride/runlint/pkg/tree"
)

// Kind tells where a declaration was made.
type Kind int

const (
	// Global declarations come before the first stage boundary.
	Global Kind = iota
	// Stage declarations belong to the active stage.
	Stage
)

func (k Kind) String() string {
	if k == Global {
		return "global"
	}
	return "stage"
}

// Declaration is one assignment site of a variable.
// Value is nil for a bare declaration such as `ARG NAME`.
type Declaration struct {
	Site  tree.Position
	Value *tree.RawArgument
	Kind  Kind
}

// HasValue reports whether the declaration assigns a value.
func (d Declaration) HasValue() bool {
	return d.Value != nil
}

// Symbol is a named variable with its declarations in source order.
type Symbol struct {
	Name         string
	Declarations []Declaration
}

// Last returns the declaration with the greatest source position.
func (s *Symbol) Last() (Declaration, bool) {
	if s == nil || len(s.Declarations) == 0 {
		return Declaration{}, false
	}
	return s.Declarations[len(s.Declarations)-1], true
}

// LastValued returns the last declaration that assigns a value.
func (s *Symbol) LastValued() (Declaration, bool) {
	if s == nil {
		return Declaration{}, false
	}
	for i := len(s.Declarations) - 1; i >= 0; i-- {
		if s.Declarations[i].HasValue() {
			return s.Declarations[i], true
		}
	}
	return Declaration{}, false
}

func (s *Symbol) add(d Declaration) {
	// Declarations normally arrive in source order; keep the list sorted
	// if a caller replays them out of order.
	i := len(s.Declarations)
	for i > 0 && d.Site.Before(s.Declarations[i-1].Site) {
		i--
	}
	s.Declarations = slices.Insert(s.Declarations, i, d)
}

// Table is the scope of one file walk: a global region plus the active
// stage region. It must not be shared between files or goroutines.
type Table struct {
	global  map[string]*Symbol
	stage   map[string]*Symbol
	inStage bool
}

// NewTable returns an empty table positioned before the first stage.
func NewTable() *Table {
	return &Table{
		global: make(map[string]*Symbol),
		stage:  make(map[string]*Symbol),
	}
}

// Declare records a declaration. Declarations made before any stage
// boundary, or with global set, land in the global region.
func (t *Table) Declare(name string, value *tree.RawArgument, global bool, site tree.Position) {
	region, kind := t.stage, Stage
	if global || !t.inStage {
		region, kind = t.global, Global
	}
	sym, ok := region[name]
	if !ok {
		sym = &Symbol{Name: name}
		region[name] = sym
	}
	sym.add(Declaration{Site: site, Value: value, Kind: kind})
}

// OnStageBoundary starts a new stage. Only the stage region is cleared;
// global declarations stay visible.
func (t *Table) OnStageBoundary() {
	t.inStage = true
	clear(t.stage)
}

// InStage reports whether at least one stage boundary has been seen.
func (t *Table) InStage() bool {
	return t.inStage
}

// ResolveLast returns the stage-local symbol if present, else the global
// one, else nil. A nil table has no symbols.
func (t *Table) ResolveLast(name string) *Symbol {
	if t == nil {
		return nil
	}
	if sym, ok := t.stage[name]; ok {
		return sym
	}
	if sym, ok := t.global[name]; ok {
		return sym
	}
	return nil
}

// LastValue returns the last valued declaration of name visible at the
// current point of the walk. A bare stage declaration (`ARG NAME`) lets the
// global value show through.
func (t *Table) LastValue(name string) (Declaration, bool) {
	if t == nil {
		return Declaration{}, false
	}
	if sym, ok := t.stage[name]; ok {
		if last, _ := sym.Last(); last.HasValue() {
			return last, true
		}
		if d, ok := t.global[name].LastValued(); ok {
			return d, true
		}
		return sym.LastValued()
	}
	return t.global[name].LastValued()
}

// Names returns the names visible at the current point, sorted.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.global)+len(t.stage))
	for name := range t.global {
		names = append(names, name)
	}
	for name := range t.stage {
		if _, ok := t.global[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
