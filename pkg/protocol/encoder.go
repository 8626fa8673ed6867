package protocol

import (
	"fmt"
	"strings"
)

// byte sequence appended to every command before it goes on the wire
type Terminator string

const (
	LF   Terminator = "\n"
	CR   Terminator = "\r"
	CRLF Terminator = "\r\n"
)

// maps a config name to a terminator. accepts both names (lf, cr, crlf) and escaped literals
func ParseTerminator(name string) (Terminator, error) {
	switch strings.ToLower(name) {
	case "lf", `\n`, "\n":
		return LF, nil
	case "cr", `\r`, "\r":
		return CR, nil
	case "crlf", `\r\n`, "\r\n":
		return CRLF, nil
	default:
		return "", fmt.Errorf("unknown line terminator %q (want lf, cr or crlf)", name)
	}
}

// returns the config name of the terminator
func (t Terminator) String() string {
	switch t {
	case LF:
		return "lf"
	case CR:
		return "cr"
	case CRLF:
		return "crlf"
	default:
		return fmt.Sprintf("%q", string(t))
	}
}

// Encodes a command to [command][terminator]. command bytes are sent as-is
func EncodeLine(command string, t Terminator) []byte {
	buf := make([]byte, 0, len(command)+len(t))
	buf = append(buf, command...)
	return append(buf, t...)
}
