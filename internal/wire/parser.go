package wire

import (
	imapcore "github.com/driftmail/go-imapcore"
)

// Parser assembles tokens into response values.
type Parser struct {
	tok *Tokenizer
}

// NewParser creates a parser lexing from src.
func NewParser(src Source) *Parser {
	return &Parser{tok: NewTokenizer(src)}
}

// Parse consumes tokens up to the next top-level CRLF and returns the
// accumulated values. A lone scalar is returned unwrapped; several scalars
// come back as a flat list; parenthesized groups nest.
//
// A ')' without a matching '(' is a grammar error, reported as a
// *imapcore.BadResponseError. A missing ')' at the end
// of the unit is tolerated: the outstanding stack is promoted to the result,
// which keeps the parser usable against buggy servers.
func (p *Parser) Parse() (imapcore.Value, error) {
	// stack[0] collects the top level; deeper entries are open lists
	stack := []imapcore.List{nil}

	for {
		tk, err := p.tok.Next()
		if err != nil {
			return nil, err
		}

		switch tk.Kind {
		case TokenCRLF:
			if len(stack) == 1 {
				return finish(stack[0]), nil
			}
			// promote unterminated lists
			for len(stack) > 1 {
				inner := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				stack[len(stack)-1] = append(stack[len(stack)-1], inner)
			}
			return finish(stack[0]), nil
		case TokenListOpen:
			stack = append(stack, imapcore.List{})
		case TokenListClose:
			if len(stack) == 1 {
				return nil, imapcore.BadResponseErrorf("unbalanced ')'")
			}
			inner := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack[len(stack)-1] = append(stack[len(stack)-1], inner)
		case TokenAtom:
			stack[len(stack)-1] = append(stack[len(stack)-1], imapcore.Atom(tk.Data))
		case TokenQuoted, TokenLiteral:
			stack[len(stack)-1] = append(stack[len(stack)-1], imapcore.String(tk.Data))
		}
	}
}

func finish(top imapcore.List) imapcore.Value {
	if len(top) == 1 {
		return top[0]
	}
	return top
}
