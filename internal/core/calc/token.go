package calc

import (
	"sort"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
)

type token struct {
	kind  tokenKind
	value float64
}

// symbolTable resolves field names against a value snapshot with
// longest-match-first semantics: names are ordered by length descending so
// that "Running Time" wins over a field called "Time" starting at the same
// position. Two distinct names of equal length can never match the same
// position, so the secondary lexicographic order only makes the scan
// deterministic.
type symbolTable struct {
	names  []string
	values map[string]*float64
}

func newSymbolTable(values map[string]*float64) *symbolTable {
	names := make([]string, 0, len(values))
	for name := range values {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return &symbolTable{names: names, values: values}
}

// match returns the longest field name that prefixes s.
func (t *symbolTable) match(s string) (string, bool) {
	for _, name := range t.names {
		if strings.HasPrefix(s, name) {
			return name, true
		}
	}
	return "", false
}

// tokenize scans a formula left to right, substituting field values inline.
// At every position field names are tried before anything else: a name may
// contain spaces or digits ("Running Time", "5k Split"), so splitting on
// other token classes first would shred it.
func tokenize(expression string, syms *symbolTable) ([]token, error) {
	var tokens []token

	i := 0
	for i < len(expression) {
		c := expression[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		if name, ok := syms.match(expression[i:]); ok {
			v := syms.values[name]
			if v == nil {
				// One unresolved reference invalidates the whole formula,
				// not just this term.
				return nil, errMissingDependency
			}
			tokens = append(tokens, token{kind: tokenNumber, value: *v})
			i += len(name)
			continue
		}

		switch c {
		case '+':
			tokens = append(tokens, token{kind: tokenPlus})
			i++
			continue
		case '-':
			tokens = append(tokens, token{kind: tokenMinus})
			i++
			continue
		case '*':
			tokens = append(tokens, token{kind: tokenStar})
			i++
			continue
		case '/':
			tokens = append(tokens, token{kind: tokenSlash})
			i++
			continue
		case '(':
			tokens = append(tokens, token{kind: tokenLParen})
			i++
			continue
		case ')':
			tokens = append(tokens, token{kind: tokenRParen})
			i++
			continue
		}

		if c >= '0' && c <= '9' {
			j := i + 1
			for j < len(expression) && expression[j] >= '0' && expression[j] <= '9' {
				j++
			}
			if j < len(expression) && expression[j] == '.' {
				j++
				for j < len(expression) && expression[j] >= '0' && expression[j] <= '9' {
					j++
				}
			}
			v, err := strconv.ParseFloat(expression[i:j], 64)
			if err != nil {
				return nil, errBadNumber
			}
			tokens = append(tokens, token{kind: tokenNumber, value: v})
			i = j
			continue
		}

		return nil, errUnknownToken
	}

	return tokens, nil
}
