package repositories

import (
	"fmt"
	"regexp"
)

// CheckPattern reports whether pattern is a regular expression both
// repository backends evaluate the same way. The memory backend runs Go RE2
// and PostgreSQL runs ARE, each wrapped as ^(?:pattern)$. Syntax the two
// dialects read differently is rejected:
//   - group prefixes other than (?: (inline flags such as (?i), named groups)
//   - \b and \B (word boundary in RE2, backspace and backslash in ARE)
//   - \p, \P, \Q, \E, \z and \C, which ARE does not accept
func CheckPattern(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return err
	}

	inClass := false
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '\\':
			if i+1 >= len(pattern) {
				return nil
			}
			i++
			switch n := pattern[i]; n {
			case 'b', 'B', 'p', 'P', 'Q', 'E', 'z', 'C':
				return fmt.Errorf(`escape \%c is not supported`, n)
			}
		case inClass:
			if c == '[' && i+1 < len(pattern) && pattern[i+1] == ':' {
				// POSIX class such as [:alpha:]; skip to its closing ":]".
				for j := i + 2; j+1 < len(pattern); j++ {
					if pattern[j] == ':' && pattern[j+1] == ']' {
						i = j + 1
						break
					}
				}
			} else if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			// A leading ] (after an optional ^) is a literal.
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				i++
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
			}
		case c == '(' && i+1 < len(pattern) && pattern[i+1] == '?':
			if i+2 >= len(pattern) || pattern[i+2] != ':' {
				return fmt.Errorf("group prefix at offset %d is not supported; only (?:...) is", i)
			}
		}
	}
	return nil
}
