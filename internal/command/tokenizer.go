// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import "strings"

// Tokenize splits a line on whitespace.
//
// A token that opens with '"' or '\'' and does not close with the same
// quote starts an accumulation: following tokens are joined with single
// spaces until one ends with that quote. The quotes are stripped. An
// unterminated quote accumulates to the end of the line.
func Tokenize(line string) []string {
	fields := strings.Fields(line)
	tokens := make([]string, 0, len(fields))

	var (
		open  byte
		parts []string
	)
	for _, f := range fields {
		if open != 0 {
			if strings.HasSuffix(f, string(open)) {
				if rest := f[:len(f)-1]; rest != "" {
					parts = append(parts, rest)
				}
				tokens = append(tokens, strings.Join(parts, " "))
				open, parts = 0, nil
				continue
			}
			parts = append(parts, f)
			continue
		}

		q := f[0]
		if q != '"' && q != '\'' {
			tokens = append(tokens, f)
			continue
		}
		if len(f) >= 2 && f[len(f)-1] == q {
			tokens = append(tokens, f[1:len(f)-1])
			continue
		}
		open = q
		if rest := f[1:]; rest != "" {
			parts = append(parts, rest)
		}
	}

	if open != 0 {
		tokens = append(tokens, strings.Join(parts, " "))
	}
	return tokens
}
