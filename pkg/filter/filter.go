// Package filter decides which paths the filesystem refuses to create or
// open.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of matching one path.
type Verdict int

const (
	// None means no rule matched; the path is allowed.
	None Verdict = iota
	// Ignore means the path must be refused.
	Ignore
	// Whitelist means an explicit allow rule matched; it overrides Ignore.
	Whitelist
)

func (v Verdict) String() string {
	switch v {
	case Ignore:
		return "ignore"
	case Whitelist:
		return "whitelist"
	default:
		return "none"
	}
}

// Matcher classifies a path. path uses '\' or '/' separators and may start
// with a separator. Implementations must be safe for concurrent use.
type Matcher interface {
	Match(path string, isDir bool) Verdict
}

// GlobConfig configures a Glob matcher.
type GlobConfig struct {
	// Ignore lists patterns whose matches are refused.
	Ignore []string `mapstructure:"ignore"`

	// Whitelist lists patterns that are always allowed, even when an
	// Ignore pattern also matches.
	Whitelist []string `mapstructure:"whitelist"`

	// IgnoreCase makes every pattern case-insensitive.
	IgnoreCase bool `mapstructure:"ignore_case"`
}

type rule struct {
	pattern string
	re      *regexp.Regexp
	dirOnly bool
}

// Glob matches paths against rsync style glob patterns:
//
//	*      any run of characters except '/'
//	**     any run of characters including '/'
//	?      one character except '/'
//	[...]  a character class
//	{a,b}  alternatives
//
// A leading '/' anchors the pattern at the root; otherwise it may match at
// any depth. A trailing '/' restricts the pattern to directories.
type Glob struct {
	ignore    []rule
	whitelist []rule
}

// NewGlob compiles cfg.
func NewGlob(cfg GlobConfig) (*Glob, error) {
	g := &Glob{}
	var err error
	if g.ignore, err = compileAll(cfg.Ignore, cfg.IgnoreCase); err != nil {
		return nil, err
	}
	if g.whitelist, err = compileAll(cfg.Whitelist, cfg.IgnoreCase); err != nil {
		return nil, err
	}
	return g, nil
}

// Match implements Matcher.
func (g *Glob) Match(path string, isDir bool) Verdict {
	p := strings.TrimLeft(strings.ReplaceAll(path, `\`, "/"), "/")

	if matchAny(g.whitelist, p, isDir) {
		return Whitelist
	}
	if matchAny(g.ignore, p, isDir) {
		return Ignore
	}
	return None
}

func matchAny(rules []rule, path string, isDir bool) bool {
	for _, r := range rules {
		loc := r.re.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}
		// The last group captures whatever lies below the matched
		// component. A directory-only rule still covers files inside it.
		below := loc[len(loc)-2] >= 0
		if r.dirOnly && !isDir && !below {
			continue
		}
		return true
	}
	return false
}

func compileAll(patterns []string, ignoreCase bool) ([]rule, error) {
	rules := make([]rule, 0, len(patterns))
	for _, pat := range patterns {
		if strings.TrimSpace(pat) == "" {
			continue
		}
		dirOnly := strings.HasSuffix(pat, "/")
		re, err := globToRegexp(strings.TrimSuffix(pat, "/"), ignoreCase)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule{pattern: pat, re: re, dirOnly: dirOnly})
	}
	return rules, nil
}

func globToRegexp(glob string, ignoreCase bool) (*regexp.Regexp, error) {
	var re strings.Builder
	if ignoreCase {
		re.WriteString("(?i)")
	}
	if strings.HasPrefix(glob, "/") {
		glob = glob[1:]
		re.WriteByte('^')
	} else {
		re.WriteString("(^|/)")
	}

	stars := 0
	flushStars := func() error {
		switch stars {
		case 0:
		case 1:
			re.WriteString(`[^/]*`)
		case 2:
			re.WriteString(`.*`)
		default:
			return fmt.Errorf("too many stars in %q", glob)
		}
		stars = 0
		return nil
	}

	inBraces := false
	inBrackets := 0
	for _, c := range glob {
		if c != '*' {
			if err := flushStars(); err != nil {
				return nil, err
			}
		}
		if inBrackets > 0 {
			re.WriteRune(c)
			if c == ']' {
				inBrackets--
			}
			continue
		}
		switch c {
		case '*':
			stars++
		case '?':
			re.WriteString(`[^/]`)
		case '[':
			re.WriteRune(c)
			inBrackets++
		case ']':
			return nil, fmt.Errorf("mismatched ']' in glob %q", glob)
		case '{':
			if inBraces {
				return nil, fmt.Errorf("can't nest '{' '}' in glob %q", glob)
			}
			inBraces = true
			re.WriteByte('(')
		case '}':
			if !inBraces {
				return nil, fmt.Errorf("mismatched '{' and '}' in glob %q", glob)
			}
			inBraces = false
			re.WriteByte(')')
		case ',':
			if inBraces {
				re.WriteByte('|')
			} else {
				re.WriteRune(c)
			}
		case '.', '+', '(', ')', '|', '^', '$', '\\':
			re.WriteByte('\\')
			re.WriteRune(c)
		default:
			re.WriteRune(c)
		}
	}
	if err := flushStars(); err != nil {
		return nil, err
	}
	if inBrackets > 0 {
		return nil, fmt.Errorf("mismatched '[' and ']' in glob %q", glob)
	}
	if inBraces {
		return nil, fmt.Errorf("mismatched '{' and '}' in glob %q", glob)
	}
	// Matching a directory also matches everything beneath it.
	re.WriteString("(/.*)?$")

	return regexp.Compile(re.String())
}
