// Package match provides whole-word token and pattern matching over the
// free-text fields of a library item (release group, scene name, path).
package match

import (
	"regexp"
	"strings"
	"sync"
)

// Boundaries accepted on either side of a token: start/end of string or any
// character that is not a lowercase letter or digit. Haystacks are lowered
// before matching, so the class only needs the lowercase range.
const (
	leftBoundary  = `(?:^|[^a-z0-9])`
	rightBoundary = `(?:$|[^a-z0-9])`
)

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*regexp.Regexp)
)

// Matches reports whether token occurs in haystack as a whole word,
// ignoring case. Regex metacharacters in token are matched literally.
func Matches(haystack, token string) bool {
	token = strings.TrimSpace(token)
	if token == "" || haystack == "" {
		return false
	}
	re := compile("t:"+token, regexp.QuoteMeta(strings.ToLower(token)))
	if re == nil {
		return false
	}
	return re.MatchString(strings.ToLower(haystack))
}

// MatchesPattern reports whether the regular expression body pattern matches
// haystack with whole-word boundaries on both sides. An invalid pattern never
// matches; callers validate patterns up front with Compile.
func MatchesPattern(haystack, pattern string) bool {
	if pattern == "" || haystack == "" {
		return false
	}
	re := compile("p:"+pattern, strings.ToLower(pattern))
	if re == nil {
		return false
	}
	return re.MatchString(strings.ToLower(haystack))
}

// MatchesAny reports whether any of the tokens matches haystack.
func MatchesAny(haystack string, tokens ...string) bool {
	for _, t := range tokens {
		if Matches(haystack, t) {
			return true
		}
	}
	return false
}

// Compile validates a pattern body the same way MatchesPattern uses it.
func Compile(pattern string) error {
	_, err := regexp.Compile(leftBoundary + "(?:" + strings.ToLower(pattern) + ")" + rightBoundary)
	return err
}

func compile(key, body string) *regexp.Regexp {
	cacheMu.RLock()
	re, ok := cache[key]
	cacheMu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(leftBoundary + "(?:" + body + ")" + rightBoundary)
	if err != nil {
		re = nil
	}

	cacheMu.Lock()
	cache[key] = re
	cacheMu.Unlock()
	return re
}
