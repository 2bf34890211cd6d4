package conditional

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes; 0 is reserved for whitespace, which is only ever skipped.
const (
	whitespaceCode = iota
	resultCode
	openBracketCode
	indexCode
	closeBracketCode
	wordCode
	symbolCode
	operandCode
)

var (
	whitespaceToken   = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	resultToken       = parsly.NewToken(resultCode, "result", matcher.NewFragment("result"))
	openBracketToken  = parsly.NewToken(openBracketCode, "[", matcher.NewByte('['))
	indexToken        = parsly.NewToken(indexCode, "Index", &digitsMatcher{})
	closeBracketToken = parsly.NewToken(closeBracketCode, "]", matcher.NewByte(']'))
	wordToken         = parsly.NewToken(wordCode, "Operator", &wordMatcher{})
	symbolToken       = parsly.NewToken(symbolCode, "Operator", &symbolMatcher{})
	operandToken      = parsly.NewToken(operandCode, "Operand", &restMatcher{})
)

// digitsMatcher matches a run of decimal digits
type digitsMatcher struct{}

func (m *digitsMatcher) Match(cursor *parsly.Cursor) int {
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize && isDigit(cursor.Input[i]); i++ {
		matched++
	}
	return matched
}

// wordMatcher matches a keyword operator such as "contains" or "not_equals"
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		c := cursor.Input[i]
		if !isLetter(c) && c != '_' {
			break
		}
		matched++
	}
	return matched
}

// symbolMatcher matches ==, !=, >=, <=, >, < and =
type symbolMatcher struct{}

func (m *symbolMatcher) Match(cursor *parsly.Cursor) int {
	pos, size := cursor.Pos, cursor.InputSize
	if pos >= size {
		return 0
	}
	switch cursor.Input[pos] {
	case '=', '>', '<':
	case '!':
		if pos+1 < size && cursor.Input[pos+1] == '=' {
			return 2
		}
		return 0
	default:
		return 0
	}
	if pos+1 < size && cursor.Input[pos+1] == '=' {
		return 2
	}
	return 1
}

// restMatcher consumes the remainder of the input
type restMatcher struct{}

func (m *restMatcher) Match(cursor *parsly.Cursor) int {
	return cursor.InputSize - cursor.Pos
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
