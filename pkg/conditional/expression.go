// Package conditional implements the wait conditions used to decide when a
// polled command has converged.
//
// Two forms exist. An Expression is a comparison against one entry of a
// response list, written as "result[<index>] [not] <operator> <operand>" and
// parsed once into a typed value. A StatusCondition is an exact match over a
// fixed set of upgrade status fields.
package conditional

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/viant/parsly"

	"github.com/trungdtbk/pss1830/pkg/util"
)

// Operator is a comparison applied to a single response.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "neq"
	OpGreater     Operator = "gt"
	OpGreaterOrEq Operator = "ge"
	OpLess        Operator = "lt"
	OpLessOrEq    Operator = "le"
	OpContains    Operator = "contains"
	OpMatches     Operator = "matches"
)

var operatorAliases = map[string]Operator{
	"eq":         OpEquals,
	"==":         OpEquals,
	"=":          OpEquals,
	"equal":      OpEquals,
	"equals":     OpEquals,
	"neq":        OpNotEquals,
	"ne":         OpNotEquals,
	"!=":         OpNotEquals,
	"not_equal":  OpNotEquals,
	"not_equals": OpNotEquals,
	"gt":         OpGreater,
	">":          OpGreater,
	"ge":         OpGreaterOrEq,
	">=":         OpGreaterOrEq,
	"lt":         OpLess,
	"<":          OpLess,
	"le":         OpLessOrEq,
	"<=":         OpLessOrEq,
	"contains":   OpContains,
	"matches":    OpMatches,
}

func (o Operator) numeric() bool {
	switch o {
	case OpGreater, OpGreaterOrEq, OpLess, OpLessOrEq:
		return true
	}
	return false
}

// Expression is a parsed generic conditional. It is immutable and may be
// evaluated any number of times.
type Expression struct {
	raw     string
	index   int
	op      Operator
	negate  bool
	operand string
	number  float64
	re      *regexp.Regexp
}

// ParseExpression parses text such as `result[0] contains "Completed"`.
// Quotes around the operand are optional and removed.
func ParseExpression(raw string) (*Expression, error) {
	text := strings.TrimSpace(raw)
	cursor := parsly.NewCursor("", []byte(text), 0)
	e := &Expression{raw: raw}

	fail := func(tokens ...*parsly.Token) (*Expression, error) {
		return nil, util.NewConditionalError(raw, cursor.NewError(tokens...).Error())
	}

	if cursor.MatchOne(resultToken).Code != resultCode {
		return fail(resultToken)
	}
	if cursor.MatchAfterOptional(whitespaceToken, openBracketToken).Code != openBracketCode {
		return fail(openBracketToken)
	}
	matched := cursor.MatchAfterOptional(whitespaceToken, indexToken)
	if matched.Code != indexCode {
		return fail(indexToken)
	}
	index, err := strconv.Atoi(matched.Text(cursor))
	if err != nil {
		return nil, util.NewConditionalError(raw, err.Error())
	}
	e.index = index
	if cursor.MatchAfterOptional(whitespaceToken, closeBracketToken).Code != closeBracketCode {
		return fail(closeBracketToken)
	}

	matched = cursor.MatchAfterOptional(whitespaceToken, wordToken, symbolToken)
	if matched.Code == wordCode && matched.Text(cursor) == "not" {
		e.negate = true
		matched = cursor.MatchAfterOptional(whitespaceToken, wordToken, symbolToken)
	}
	if matched.Code != wordCode && matched.Code != symbolCode {
		return fail(wordToken, symbolToken)
	}
	name := matched.Text(cursor)
	op, ok := operatorAliases[strings.ToLower(name)]
	if !ok {
		return nil, util.NewConditionalError(raw, fmt.Sprintf("unknown operator %q", name))
	}
	e.op = op

	matched = cursor.MatchAfterOptional(whitespaceToken, operandToken)
	if matched.Code != operandCode {
		return nil, util.NewConditionalError(raw, "missing operand")
	}
	e.operand = unquote(strings.TrimSpace(matched.Text(cursor)))

	switch {
	case op.numeric():
		n, err := strconv.ParseFloat(e.operand, 64)
		if err != nil {
			return nil, util.NewConditionalError(raw, fmt.Sprintf("operator %s needs a numeric operand", op))
		}
		e.number = n
	case op == OpMatches:
		re, err := regexp.Compile(e.operand)
		if err != nil {
			return nil, util.NewConditionalError(raw, err.Error())
		}
		e.re = re
	}
	return e, nil
}

// ParseExpressions parses every entry of raws, stopping at the first error.
func ParseExpressions(raws []string) ([]*Expression, error) {
	exprs := make([]*Expression, 0, len(raws))
	for _, r := range raws {
		e, err := ParseExpression(r)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Raw returns the text the expression was parsed from.
func (e *Expression) Raw() string { return e.raw }

func (e *Expression) Index() int         { return e.index }
func (e *Expression) Operator() Operator { return e.op }
func (e *Expression) Negated() bool      { return e.negate }
func (e *Expression) Operand() string    { return e.operand }

// String renders the expression in canonical form.
func (e *Expression) String() string {
	not := ""
	if e.negate {
		not = "not "
	}
	return fmt.Sprintf("result[%d] %s%s %q", e.index, not, e.op, e.operand)
}

// Evaluate applies the expression to responses. An index out of range or a
// response that is not a number under a numeric operator is a non-match,
// whether or not the expression is negated.
func (e *Expression) Evaluate(responses []string) bool {
	if e.index < 0 || e.index >= len(responses) {
		return false
	}
	ok, valid := e.compare(responses[e.index])
	if !valid {
		return false
	}
	return ok != e.negate
}

func (e *Expression) compare(response string) (match, valid bool) {
	trimmed := strings.TrimSpace(response)
	switch e.op {
	case OpEquals:
		return trimmed == e.operand, true
	case OpNotEquals:
		return trimmed != e.operand, true
	case OpContains:
		return strings.Contains(response, e.operand), true
	case OpMatches:
		return e.re.MatchString(response), true
	}

	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return false, false
	}
	switch e.op {
	case OpGreater:
		return n > e.number, true
	case OpGreaterOrEq:
		return n >= e.number, true
	case OpLess:
		return n < e.number, true
	case OpLessOrEq:
		return n <= e.number, true
	}
	return false, false
}
