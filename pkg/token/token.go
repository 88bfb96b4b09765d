package token

type Type int

const (
	EOF Type = iota
	Ident
	IntLit
	Array
	Else
	If
	Of
	Proc
	Ref
	TypeKeyword
	Var
	While
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
	Assign
	Colon
	Comma
	Semi
	Plus
	Minus
	Star
	Slash
)

var KeywordMap = map[string]Type{
	"array": Array,
	"else":  Else,
	"if":    If,
	"of":    Of,
	"proc":  Proc,
	"ref":   Ref,
	"type":  TypeKeyword,
	"var":   Var,
	"while": While,
}

var typeStrings = map[Type]string{
	EOF:      "end of file",
	Ident:    "identifier",
	IntLit:   "integer literal",
	LParen:   "'('",
	RParen:   "')'",
	LBracket: "'['",
	RBracket: "']'",
	LBrace:   "'{'",
	RBrace:   "'}'",
	Eq:       "'='",
	Neq:      "'#'",
	Lt:       "'<'",
	Lte:      "'<='",
	Gt:       "'>'",
	Gte:      "'>='",
	Assign:   "':='",
	Colon:    "':'",
	Comma:    "','",
	Semi:     "';'",
	Plus:     "'+'",
	Minus:    "'-'",
	Star:     "'*'",
	Slash:    "'/'",
}

func init() {
	for str, typ := range KeywordMap {
		typeStrings[typ] = "'" + str + "'"
	}
}

func (t Type) String() string {
	if s, ok := typeStrings[t]; ok {
		return s
	}
	return "unknown token"
}

// Token is a lexeme with its position. Value holds the interned name of an
// identifier or the decimal value of an integer literal.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
