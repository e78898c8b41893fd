package calc

// parser consumes the token stream produced by tokenize with the usual
// precedence grammar, left-associative:
//
//	Expression := Term (('+' | '-') Term)*
//	Term       := Factor (('*' | '/') Factor)*
//	Factor     := NUMBER | '(' Expression ')' | '-' Factor
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) parseExpression() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != tokenPlus && tok.kind != tokenMinus) {
			return left, nil
		}
		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}

		if tok.kind == tokenPlus {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != tokenStar && tok.kind != tokenSlash) {
			return left, nil
		}
		p.pos++

		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}

		if tok.kind == tokenStar {
			left *= right
		} else {
			if right == 0 {
				return 0, errDivisionByZero
			}
			left /= right
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	tok, ok := p.next()
	if !ok {
		return 0, errUnexpectedEnd
	}

	switch tok.kind {
	case tokenNumber:
		return tok.value, nil

	case tokenMinus:
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil

	case tokenLParen:
		v, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		closing, ok := p.next()
		if !ok || closing.kind != tokenRParen {
			return 0, errUnbalancedParens
		}
		return v, nil

	default:
		return 0, errUnexpectedToken
	}
}
