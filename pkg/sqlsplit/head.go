package sqlsplit

import "strings"

// NormalizeHead strips leading whitespace and leading line/block comments
// from sql and lowercases the remainder. It is used to classify a statement
// by its first keyword; an unterminated leading comment yields "".
func NormalizeHead(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = strings.TrimSpace(s[nl+1:])
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+2:])
		default:
			return strings.ToLower(s)
		}
	}
}

// LeadingKeyword returns the first whitespace- or punctuation-delimited
// word of the normalized statement head.
func LeadingKeyword(sql string) string {
	head := NormalizeHead(sql)
	for i, ch := range head {
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '(' || ch == ';' {
			return head[:i]
		}
	}
	return head
}

// IsCopyFromStdin reports whether the statement opens an inline bulk-load
// data section (COPY ... FROM STDIN).
func IsCopyFromStdin(sql string) bool {
	head := NormalizeHead(sql)
	return strings.HasPrefix(head, "copy") && strings.Contains(head, "from stdin")
}
