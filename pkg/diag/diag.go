// Package diag holds the compiler's error taxonomy and prints diagnostics
// with the offending source line.
package diag

import (
	"errors"
	"fmt"

	"tlog.app/go/loc"

	"github.com/xplshn/splc/pkg/token"
)

// Kind classifies a compile error. Every kind has a stable numeric code
// that the driver uses as its exit status.
type Kind int

const (
	Internal Kind = iota
	LexicalError
	SyntaxError

	// Declarations
	UndefinedType
	NotAType
	RedeclarationAsType
	MustBeAReferenceParameter
	RedeclarationAsProcedure
	RedeclarationAsParameter
	RedeclarationAsVariable

	// Statements and expressions
	IllegalAssignment
	IllegalAssignmentToArray
	IfConditionMustBeBoolean
	WhileConditionMustBeBoolean
	UndefinedProcedure
	CallOfNonProcedure
	ArgumentTypeMismatch
	ArgumentMustBeAVariable
	TooFewArguments
	TooManyArguments
	NoSuchOperator
	UndefinedVariable
	NotAVariable
	IndexingNonArray
	IndexingWithNonInteger

	// Program shape
	MainIsMissing
	MainIsNotAProcedure
	MainMustNotHaveParameters
	ReservedName

	RegisterOverflow
)

var kindInfo = [...]struct {
	name string
	code int
}{
	Internal:                    {"internal error", 150},
	LexicalError:                {"lexical error", 99},
	SyntaxError:                 {"syntax error", 100},
	UndefinedType:               {"undefined type", 101},
	NotAType:                    {"not a type", 102},
	RedeclarationAsType:         {"redeclaration as type", 103},
	MustBeAReferenceParameter:   {"must be a reference parameter", 104},
	RedeclarationAsProcedure:    {"redeclaration as procedure", 105},
	RedeclarationAsParameter:    {"redeclaration as parameter", 106},
	RedeclarationAsVariable:     {"redeclaration as variable", 107},
	IllegalAssignment:           {"illegal assignment", 108},
	IllegalAssignmentToArray:    {"illegal assignment to array", 109},
	IfConditionMustBeBoolean:    {"if condition must be boolean", 110},
	WhileConditionMustBeBoolean: {"while condition must be boolean", 111},
	UndefinedProcedure:          {"undefined procedure", 113},
	CallOfNonProcedure:          {"call of non-procedure", 114},
	ArgumentTypeMismatch:        {"argument type mismatch", 115},
	ArgumentMustBeAVariable:     {"argument must be a variable", 116},
	TooFewArguments:             {"too few arguments", 117},
	TooManyArguments:            {"too many arguments", 118},
	NoSuchOperator:              {"no such operator", 119},
	UndefinedVariable:           {"undefined variable", 120},
	NotAVariable:                {"not a variable", 121},
	IndexingNonArray:            {"indexing non-array", 122},
	IndexingWithNonInteger:      {"indexing with non-integer", 123},
	MainIsMissing:               {"main is missing", 125},
	MainIsNotAProcedure:         {"main is not a procedure", 126},
	MainMustNotHaveParameters:   {"main must not have parameters", 127},
	ReservedName:                {"reserved name", 128},
	RegisterOverflow:            {"register overflow", 140},
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindInfo) {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code is the exit status reported for errors of this kind.
func (k Kind) Code() int {
	if k >= 0 && int(k) < len(kindInfo) {
		return kindInfo[k].code
	}
	return kindInfo[Internal].code
}

// Error is a compile error located at a token. From records the compiler
// location that raised it, for phase logs.
type Error struct {
	Kind Kind
	Tok  token.Token
	Msg  string
	From loc.PC
}

func (e *Error) Error() string {
	if e.Tok.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%d:%d: %s", e.Tok.Line, e.Tok.Column, e.Msg)
}

func Errorf(kind Kind, tok token.Token, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...), From: loc.Caller(1)}
}

// AsError returns the *Error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the compile error wrapped in err, or Internal
// for any other error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return Internal
}

// ExitCode maps err to a process exit status: 0 for nil, the kind's code otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).Code()
}
