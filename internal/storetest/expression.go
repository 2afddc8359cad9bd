package storetest

import (
	"fmt"
	"regexp"
)

var (
	idTestExpr         = regexp.MustCompile(`^\s*/(.*)/\.test\(id\)\s*$`)
	corpusIncludesExpr = regexp.MustCompile(`^\s*labels\('corpus'\)\.includes\('([^']*)'\)\s*$`)
)

// filter is a compiled query expression. corpora returns the corpora of
// the record with the given ID.
type filter func(id string, corpora []string) bool

// compileExpression understands the two expression forms the CLI sends:
// an ID regular expression, and corpus membership.
func compileExpression(expression string) (filter, error) {
	if m := idTestExpr.FindStringSubmatch(expression); m != nil {
		re, err := regexp.Compile(m[1])
		if err != nil {
			return nil, fmt.Errorf("Invalid expression: %s: %v", expression, err)
		}
		return func(id string, _ []string) bool {
			return re.MatchString(id)
		}, nil
	}

	if m := corpusIncludesExpr.FindStringSubmatch(expression); m != nil {
		corpus := m[1]
		return func(_ string, corpora []string) bool {
			for _, c := range corpora {
				if c == corpus {
					return true
				}
			}
			return false
		}, nil
	}

	return nil, fmt.Errorf("Invalid expression: %s", expression)
}
