package env

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"

	kerr "kernelchk/internal/errors"
	"kernelchk/internal/expr"
	"kernelchk/internal/level"
	"kernelchk/internal/name"
)

// TypeChecker is the subset of the convert package's checking API the
// environment needs in order to validate a declaration before admitting
// it. Kept as a small interface here, implemented by convert.Checker, so
// env never imports convert — convert imports env to resolve constants.
type TypeChecker interface {
	// Check infers value's type against the declaration's universe
	// parameters (used to flag any parameter the value/type mentions but
	// the declaration never bound).
	Check(value expr.Expr, lparams []level.Level) (expr.Expr, error)
	// IsDefEq decides definitional equality of two already-checked terms.
	IsDefEq(a, b expr.Expr) (bool, error)
}

// NewCheckerFunc builds a fresh TypeChecker bound to env — passed to New by
// the caller (cmd/kernelchk passes convert.NewChecker), invoked by the
// environment every time a declaration needs elaboration.
type NewCheckerFunc func(e *Env) TypeChecker

// Env is the append-only declaration table: every admitted constant's
// ConstantInfo, the ι/δ reduction rules those constants install, and the
// one-shot quotient-package flag. Reads happen from every checker
// goroutine; writes happen only from the single serial compiler worker, so
// a reader/writer lock (rather than a plain mutex) lets checking proceed
// concurrently with itself while writes are serialized.
type Env struct {
	mu deadlock.RWMutex

	constants map[name.Name]ConstantInfo
	reduction *ReductionMap

	quotInitialized bool

	newChecker NewCheckerFunc
}

// New builds an empty environment. newChecker may be nil while the caller
// only uses Insert, AddQuot and AddInductiveConstants; AddAxiom and
// AddDefinition build a checker through it.
func New(newChecker NewCheckerFunc) *Env {
	return &Env{
		constants:  make(map[name.Name]ConstantInfo),
		reduction:  NewReductionMap(),
		newChecker: newChecker,
	}
}

// Reduction returns the shared reduction-rule map.
func (e *Env) Reduction() *ReductionMap { return e.reduction }

// Fork copies the environment into an independent scratch instance: same
// constants and reduction rules, fresh lock. The inductive compiler builds
// a family against a fork so a failure partway through (a positivity or
// universe violation after the type former went in) leaves the real
// environment untouched.
func (e *Env) Fork() *Env {
	e.mu.RLock()
	defer e.mu.RUnlock()
	constants := make(map[name.Name]ConstantInfo, len(e.constants)+8)
	for k, v := range e.constants {
		constants[k] = v
	}
	return &Env{
		constants:       constants,
		reduction:       e.reduction.Clone(),
		quotInitialized: e.quotInitialized,
		newChecker:      e.newChecker,
	}
}

// Insert admits an already-compiled constant record without re-running any
// checking. The parallel pipeline uses this from its serial compile stage,
// deferring value checking to the checker workers; everything else
// goes through the checking Add* entry points.
func (e *Env) Insert(info ConstantInfo) error {
	return e.insert(info.GetConstantVal().Name, info)
}

// NumDeclars reports how many constants the environment holds.
func (e *Env) NumDeclars() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.constants)
}

// Get looks up a previously admitted constant.
func (e *Env) Get(n name.Name) (ConstantInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.constants[n]
	return c, ok
}

// GetHint is a convenience wrapper returning a definition's reducibility
// hint, or HintOpaque-equivalent "not a definition" via ok=false.
func (e *Env) GetHint(n name.Name) (ReducibilityHint, bool) {
	c, ok := e.Get(n)
	if !ok || c.Kind != KindDefinition {
		return ReducibilityHint{}, false
	}
	return c.Definition.Hint, true
}

// QuotInitialized reports whether the quotient package has been installed.
func (e *Env) QuotInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quotInitialized
}

func (e *Env) insert(n name.Name, info ConstantInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.constants[n]; exists {
		return kerr.New(kerr.CodeDuplicateDecl, fmt.Sprintf("constant %q already declared", n))
	}
	e.constants[n] = info
	return nil
}

// EnsureNoDupeLParams rejects a declared universe-parameter list that
// binds the same name twice — exported for the pipeline's compile stage,
// which revalidates declarations it admits without a checker.
func EnsureNoDupeLParams(lparams []level.Level) error {
	return ensureNoDupeLparams(univParamNames(lparams))
}

// ensureNoDupeLparams rejects a universe-parameter list containing the
// same name twice — the kernel's declarations are never allowed to shadow
// one of their own universe binders.
func ensureNoDupeLparams(lparams []name.Name) error {
	for i, p := range lparams {
		for j := i + 1; j < len(lparams); j++ {
			if p.Equal(lparams[j]) {
				return kerr.New(kerr.CodeDupeUnivParam, fmt.Sprintf("duplicate universe parameter %q", p))
			}
		}
	}
	return nil
}

func univParamNames(lparams []level.Level) []name.Name {
	names := make([]name.Name, 0, len(lparams))
	for _, l := range lparams {
		if l.IsParam() {
			names = append(names, l.ParamName())
		}
	}
	return names
}

// checkConstantValNoTc validates a ConstantVal's well-formedness without
// invoking full elaboration: no duplicate universe parameters, the type
// carries no free Locals, and the type itself checks to some Sort. Used by
// axioms, which have no value to additionally check.
func checkConstantValNoTc(cv ConstantVal, checker TypeChecker) error {
	if err := ensureNoDupeLparams(univParamNames(cv.LParams)); err != nil {
		return err
	}
	if cv.Type.HasLocals() {
		return kerr.New(kerr.CodeTypeHasLocals, fmt.Sprintf("type of %q contains free locals", cv.Name))
	}
	sort, err := checker.Check(cv.Type, cv.LParams)
	if err != nil {
		return err
	}
	if sort.Kind() != expr.KindSort {
		return kerr.New(kerr.CodeExpectedSort, fmt.Sprintf("type of %q does not check to a sort", cv.Name))
	}
	return nil
}

// checkConstantValWtc is checkConstantValNoTc plus the additional
// obligation definitions and theorems carry: their value must check
// against the declared type.
func checkConstantValWtc(cv ConstantVal, value expr.Expr, checker TypeChecker) error {
	if err := checkConstantValNoTc(cv, checker); err != nil {
		return err
	}
	inferred, err := checker.Check(value, cv.LParams)
	if err != nil {
		return err
	}
	ok, err := checker.IsDefEq(inferred, cv.Type)
	if err != nil {
		return err
	}
	if !ok {
		return kerr.New(kerr.CodeTypeMismatch, fmt.Sprintf("value of %q does not match declared type", cv.Name))
	}
	return nil
}

// AddAxiom admits an axiom after checking its type is well-formed.
func (e *Env) AddAxiom(v AxiomVal) error {
	checker := e.newChecker(e)
	if err := checkConstantValNoTc(v.ConstantVal, checker); err != nil {
		return err
	}
	return e.insert(v.ConstantVal.Name, FromAxiom(v))
}

// AddDefinition admits a definition: unsafe definitions are inserted
// before checking (so a recursive definition can refer to itself, at the
// caller's own risk); safe definitions are checked first and only
// inserted once elaboration succeeds.
func (e *Env) AddDefinition(v DefinitionVal) error {
	if v.IsUnsafe {
		if err := e.insert(v.ConstantVal.Name, FromDefinition(v)); err != nil {
			return err
		}
		checker := e.newChecker(e)
		return checkConstantValWtc(v.ConstantVal, v.Value, checker)
	}
	checker := e.newChecker(e)
	if err := checkConstantValWtc(v.ConstantVal, v.Value, checker); err != nil {
		return err
	}
	return e.insert(v.ConstantVal.Name, FromDefinition(v))
}

// AddQuot installs one of the four hardcoded quotient-package constants.
// The caller registers the computation rules and calls InitQuot once all
// four are in.
func (e *Env) AddQuot(v QuotVal) error {
	return e.insert(v.ConstantVal.Name, FromQuot(v))
}

// InitQuot marks the quotient package installed. Called once, after all
// four quot constants and the computation rule have been added.
func (e *Env) InitQuot() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotInitialized = true
}

// AddInductiveConstants admits a single type former, its constructors, and
// its recursor as one atomic batch — the inductive compiler calls this
// once it has built every piece, so partial families are never visible to
// readers.
func (e *Env) AddInductiveConstants(ty InductiveVal, ctors []ConstructorVal, rec RecursorVal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.constants[ty.ConstantVal.Name]; exists {
		return kerr.New(kerr.CodeDuplicateDecl, fmt.Sprintf("constant %q already declared", ty.ConstantVal.Name))
	}
	for _, c := range ctors {
		if _, exists := e.constants[c.ConstantVal.Name]; exists {
			return kerr.New(kerr.CodeDuplicateDecl, fmt.Sprintf("constant %q already declared", c.ConstantVal.Name))
		}
	}
	if _, exists := e.constants[rec.ConstantVal.Name]; exists {
		return kerr.New(kerr.CodeDuplicateDecl, fmt.Sprintf("constant %q already declared", rec.ConstantVal.Name))
	}

	e.constants[ty.ConstantVal.Name] = FromInductive(ty)
	for _, c := range ctors {
		e.constants[c.ConstantVal.Name] = FromConstructor(c)
	}
	e.constants[rec.ConstantVal.Name] = FromRecursor(rec)
	return nil
}
