package selector

// The lexer splits pattern text into an alternating stream of operator
// and word tokens.  The parser treats every token as an operator with a
// rank; a word is just an operator of maximal rank that takes no
// arguments.

import "strings"

type tokenType int

const (
	tokenUnknown tokenType = iota
	tokenOperator
	tokenWord
	tokenString
)

// token is one lexeme with its position in the source.
type token struct {
	value string
	typ   tokenType

	// source is the complete pattern text, carried along so errors
	// can cite it.
	source string

	start int
	end   int
}

func (t *token) syntaxError(msg string) *SyntaxError {
	return &SyntaxError{
		Text:   t.source,
		Offset: t.start,
		Token:  t.value,
		Msg:    msg,
	}
}

// Multi-character operators, checked before the single-character ones.
var longOperators = []string{">>", "!!"}

const singleOperators = "(),>=~:!$"

func isWordChar(c byte) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9' ||
		c == '_' || c == '*' || c == '#' || c == '.' || c == '-'
}

// lex splits the given pattern text into tokens.  Unknown characters
// become tokens of type tokenUnknown; the parser reports them.
func lex(text string) []*token {
	var (
		tokens = make([]*token, 0, 16)
		i      = 0
	)
	emit := func(value string, typ tokenType, start, end int) {
		tokens = append(tokens, &token{
			value:  value,
			typ:    typ,
			source: text,
			start:  start,
			end:    end,
		})
	}
TOKENS:
	for i < len(text) {
		c := text[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		for _, op := range longOperators {
			if strings.HasPrefix(text[i:], op) {
				emit(op, tokenOperator, i, i+len(op))
				i += len(op)
				continue TOKENS
			}
		}

		if strings.IndexByte(singleOperators, c) >= 0 {
			emit(string(c), tokenOperator, i, i+1)
			i++
			continue
		}

		// "as" is an operator only as a whole word.
		if strings.HasPrefix(text[i:], "as") &&
			(i+2 == len(text) || !isWordChar(text[i+2])) {
			emit("as", tokenOperator, i, i+2)
			i += 2
			continue
		}

		if c == '\'' {
			j := strings.IndexByte(text[i+1:], '\'')
			if j < 0 {
				emit(text[i:], tokenUnknown, i, len(text))
				i = len(text)
				continue
			}
			emit(text[i+1:i+1+j], tokenString, i, i+j+2)
			i += j + 2
			continue
		}

		if isWordChar(c) {
			j := i
			for j < len(text) && isWordChar(text[j]) {
				j++
			}
			emit(text[i:j], tokenWord, i, j)
			i = j
			continue
		}

		emit(string(c), tokenUnknown, i, i+1)
		i++
	}

	// Insert the (unused) juxtaposition operator between adjacent
	// non-operator tokens so the stream alternates.
	withJuxt := make([]*token, 0, len(tokens))
	for i, tok := range tokens {
		if i > 0 && tok.typ != tokenOperator && tokens[i-1].typ != tokenOperator {
			withJuxt = append(withJuxt, &token{
				value:  "",
				typ:    tokenOperator,
				source: text,
				start:  tok.start,
				end:    tok.start,
			})
		}
		withJuxt = append(withJuxt, tok)
	}

	return withJuxt
}
