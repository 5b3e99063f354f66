package errors

// Error codes for the kernel checker.
//
// Error code ranges mirror the six kinds laid out in the error-handling
// design: each range groups one kind so a glance at the code tells you
// which phase produced it.
//
// K001-K099: parse errors (malformed export-file lines)
// K100-K199: universe-level errors
// K200-K299: kind mismatches (expected sort/Pi/Local after whnf)
// K300-K399: definitional-inequality errors
// K400-K499: inductive well-formedness errors
// K500-K599: name collisions

const (
	// K001: malformed line in an export file (wrong column count, bad tag).
	CodeParseMalformedLine = "K001"

	// K002: a table reference (e.g. #EV index) is out of range.
	CodeParseBadTableRef = "K002"

	// K003: a column expected to hold an integer did not parse as one.
	CodeParseExpectedInt = "K003"

	// K100: a universe parameter appears in a type/value but was never declared.
	CodeUnknownUnivParam = "K100"

	// K101: a declaration's universe-parameter list contains the same name twice.
	CodeDupeUnivParam = "K101"

	// K200: whnf produced something other than a Sort where one was required.
	CodeExpectedSort = "K200"

	// K201: whnf produced something other than a Pi where one was required.
	CodeExpectedPi = "K201"

	// K202: whnf produced something other than a Local where one was required.
	CodeExpectedLocal = "K202"

	// K300: check_type found the inferred type is not def-eq to the expected type.
	CodeTypeMismatch = "K300"

	// K301: require_def_eq failed between two explicitly compared terms.
	CodeNotDefEq = "K301"

	// K302: a declaration's stated type contains a free Local.
	CodeTypeHasLocals = "K302"

	// K400: a constructor argument violates strict positivity.
	CodeNotPositive = "K400"

	// K401: a constructor's codomain is not the inductive type being declared.
	CodeBadConstructorCodomain = "K401"

	// K402: a constructor's universe falls outside what large-eliminates-to-Prop rules allow.
	CodeBadConstructorUniverse = "K402"

	// K403: a constructor application supplies the wrong number of parameters.
	CodeParamArityMismatch = "K403"

	// K404: a mutual inductive block was supplied where only singleton
	// families are accepted.
	CodeUnsupportedMutual = "K404"

	// K500: re-declaration of an already-bound name.
	CodeDuplicateDecl = "K500"
)
