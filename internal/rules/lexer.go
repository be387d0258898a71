package rules

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp    // > < >= <= == !=
	tokArith // + - * /
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of rule"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

// keyword reports whether the token is the given keyword. Keywords are
// case-insensitive.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// reserved words can never be used as field names.
var reserved = map[string]bool{
	"and":     true,
	"or":      true,
	"between": true,
	"in":      true,
	"abs":     true,
	"true":    true,
	"false":   true,
}

func isReserved(word string) bool {
	return reserved[strings.ToLower(word)]
}

// tokenize splits rule text into tokens.
func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			end, items, err := scanList(rs, i+1)
			if err != nil {
				return nil, err
			}
			toks = append(toks, items...)
			i = end
		case r == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '>' || r == '<' || r == '=' || r == '!':
			start := i
			i++
			if i < len(rs) && rs[i] == '=' {
				i++
			}
			op := string(rs[start:i])
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("unexpected %q at %d", op, start)
			}
			toks = append(toks, token{tokOp, op, start})
		case r == '+' || r == '*' || r == '/':
			toks = append(toks, token{tokArith, string(r), i})
			i++
		case r == '-' && !(i+1 < len(rs) && (unicode.IsDigit(rs[i+1]) || rs[i+1] == '.') && numberMayFollow(toks)):
			toks = append(toks, token{tokArith, "-", i})
			i++
		case r == '\'' || r == '"':
			start := i
			i++
			for i < len(rs) && rs[i] != r {
				i++
			}
			if i >= len(rs) {
				return nil, fmt.Errorf("unterminated string at %d", start)
			}
			toks = append(toks, token{tokString, string(rs[start+1 : i]), start})
			i++
		case unicode.IsDigit(r) || r == '.' || (r == '-' && i+1 < len(rs) && (unicode.IsDigit(rs[i+1]) || rs[i+1] == '.') && numberMayFollow(toks)):
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.' || rs[i] == 'e' || rs[i] == 'E' ||
				((rs[i] == '-' || rs[i] == '+') && (rs[i-1] == 'e' || rs[i-1] == 'E'))) {
				i++
			}
			toks = append(toks, token{tokNumber, string(rs[start:i]), start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, string(rs[start:i]), start})
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", r, i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(rs)})
	return toks, nil
}

// scanList reads the items of a list literal starting just after '['.
// Items are the raw text between commas, trimmed, with one pair of matching
// quotes removed. Commas inside quotes do not split. It returns the index
// just past the closing ']'.
func scanList(rs []rune, i int) (int, []token, error) {
	open := i - 1
	start := i
	var toks []token
	var quote rune
	for ; i < len(rs); i++ {
		r := rs[i]
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
		case ',', ']':
			text := strings.TrimSpace(string(rs[start:i]))
			if text == "" {
				if r == ']' && len(toks) == 0 {
					return i + 1, []token{{tokRBracket, "]", i}}, nil
				}
				return 0, nil, fmt.Errorf("empty list item at %d", start)
			}
			toks = append(toks, token{tokString, unquote(text), start})
			if r == ']' {
				return i + 1, append(toks, token{tokRBracket, "]", i}), nil
			}
			toks = append(toks, token{tokComma, ",", i})
			start = i + 1
		}
	}
	if quote != 0 {
		return 0, nil, fmt.Errorf("unterminated string in list at %d", open)
	}
	return 0, nil, fmt.Errorf("unterminated list at %d", open)
}

func unquote(s string) string {
	if n := len(s); n >= 2 && (s[0] == '\'' || s[0] == '"') && s[n-1] == s[0] {
		return s[1 : n-1]
	}
	return s
}

// numberMayFollow reports whether a leading '-' starts a negative literal
// rather than following an operand.
func numberMayFollow(prev []token) bool {
	if len(prev) == 0 {
		return true
	}
	switch last := prev[len(prev)-1]; last.kind {
	case tokOp, tokArith, tokLParen, tokLBracket, tokComma:
		return true
	case tokIdent:
		return isReserved(last.text)
	}
	return false
}
