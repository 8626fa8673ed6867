package protocol

import (
	"strings"
	"unicode/utf8"
)

// decodes one reply buffer as text. invalid or truncated utf-8 becomes U+FFFD
func DecodeReply(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// removes the line ending the console reader leaves on a line. expects "[line]\n" or "[line]\r\n"
func TrimLineEnding(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// reports whether the operator typed the exit keyword. case-insensitive, line must not carry its line ending
func IsExit(line string, keyword string) bool {
	return strings.EqualFold(line, keyword)
}
