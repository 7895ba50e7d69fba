/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package classads

import (
	"strings"

	"github.com/pkg/errors"
)

// Binary operators that cannot begin or end an expression.
var binaryOperators = []string{
	"=?=", "=!=", "&&", "||", "==", "!=", "<=", ">=", "<", ">", "+", "*", "/", "%", "?", ":",
}

// ValidateExpression performs a syntax check of a ClassAd expression without
// evaluating it: the expression must be non-empty, string literals must be
// terminated, brackets must balance and it may not begin or end with a
// binary operator.  Line breaks are rejected; expressions are written into
// line-oriented submit descriptions.
func ValidateExpression(expr string) error {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return errors.New("expression is empty")
	}
	if strings.ContainsAny(expr, "\r\n") {
		return errors.New("expression contains a line break")
	}

	var stack []rune
	insideQuotes := false
	escaped := false
	for idx, r := range trimmed {
		if insideQuotes {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				insideQuotes = false
			}
			continue
		}
		switch r {
		case '"':
			insideQuotes = true
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != openerFor(r) {
				return errors.Errorf("unbalanced %q at offset %d", r, idx)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if insideQuotes {
		return errors.New("unterminated string literal")
	}
	if len(stack) > 0 {
		return errors.Errorf("unclosed %q", stack[len(stack)-1])
	}

	for _, op := range binaryOperators {
		if strings.HasPrefix(trimmed, op) {
			return errors.Errorf("expression begins with operator %q", op)
		}
		if strings.HasSuffix(trimmed, op) {
			return errors.Errorf("expression ends with operator %q", op)
		}
	}
	if strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "-") {
		return errors.New("expression ends with a unary operator")
	}
	return nil
}

func openerFor(r rune) rune {
	switch r {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}
