package core

import (
	"strconv"
	"strings"
)

// AppendMarker is the JSON Pointer token denoting "one past the end" of an
// array (RFC 6902 section 4.1).
const AppendMarker = "-"

// Path is a parsed JSON Pointer (RFC 6901). Tokens are stored unescaped.
type Path []string

// ParsePath parses a JSON Pointer path like "/car/model".
// Paths not starting with "/" are treated as relative and parsed the same way.
func ParsePath(path string) Path {
	if path == "" || path == "/" {
		return nil
	}

	var tokens []string
	if strings.HasPrefix(path, "/") {
		tokens = strings.Split(path[1:], "/")
	} else {
		tokens = strings.Split(path, "/")
	}

	p := make(Path, len(tokens))
	for i, token := range tokens {
		p[i] = UnescapeKey(token)
	}
	return p
}

// String returns the canonical slash-delimited form of the path.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, token := range p {
		b.WriteByte('/')
		b.WriteString(EscapeKey(token))
	}
	return b.String()
}

// Root returns the first token of the path, or "" for the root path.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Last returns the final token of the path, or "" for the root path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// IsAppend reports whether the path ends in the append marker.
func (p Path) IsAppend() bool {
	return p.Last() == AppendMarker
}

// Child returns a new path with token appended. The receiver is not modified.
func (p Path) Child(token string) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, token)
}

// Index returns the array index held by token i, if any.
func (p Path) Index(i int) (int, bool) {
	if i < 0 || i >= len(p) {
		return 0, false
	}
	return ParseIndex(p[i])
}

// ParseIndex parses an array index token. Leading zeros and signs are not
// valid array indices per RFC 6901.
func ParseIndex(token string) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// EscapeKey escapes a single reference token.
func EscapeKey(key string) string {
	key = strings.ReplaceAll(key, "~", "~0")
	key = strings.ReplaceAll(key, "/", "~1")
	return key
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(key string) string {
	key = strings.ReplaceAll(key, "~1", "/")
	key = strings.ReplaceAll(key, "~0", "~")
	return key
}

// JoinPath joins two JSON Pointer paths with a slash.
func JoinPath(parent, child string) string {
	if parent == "" || parent == "/" {
		if child == "" || child == "/" {
			return ""
		}
		if child[0] == '/' {
			return child
		}
		return "/" + child
	}
	if child == "" || child == "/" {
		return parent
	}
	res := strings.TrimSuffix(parent, "/")
	if child[0] == '/' {
		return res + child
	}
	return res + "/" + child
}
