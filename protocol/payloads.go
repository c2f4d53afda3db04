package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// The three command headers and the two status/size replies carry ASCII
// payloads. Command headers use a "..." separator placeholder (a reserved
// field in the original wire format, kept here purely as an on-wire
// constant) and are NUL-terminated.
const headerSeparator = "..."

// FormatCommand renders the `c...<user> <command>\0` payload.
func FormatCommand(user, command string) []byte {
	return []byte("c" + headerSeparator + user + " " + command + "\x00")
}

// FormatInject renders the `i...<user> <size> <path>\0` payload.
func FormatInject(user string, size int64, path string) []byte {
	return []byte(fmt.Sprintf("i%s%s %d %s\x00", headerSeparator, user, size, path))
}

// FormatExtract renders the `e...<user> <path>\0` payload.
func FormatExtract(user, path string) []byte {
	return []byte(fmt.Sprintf("e%s%s %s\x00", headerSeparator, user, path))
}

// FormatQuit renders the `q...\0` payload.
func FormatQuit() []byte { return []byte("q" + headerSeparator + "\x00") }

// FormatInterrupt renders the `I...\0` payload. The same payload is used on
// both header shapes; on a multiplexed link the transaction id in the header
// identifies the target.
func FormatInterrupt() []byte { return []byte("I" + headerSeparator + "\x00") }

func trimHeader(payload []byte, tag byte) (string, error) {
	s := string(payload)
	s = strings.TrimSuffix(s, "\x00")
	prefix := string(tag) + headerSeparator
	if !strings.HasPrefix(s, prefix) {
		return "", fmt.Errorf("protocol: malformed %c header", tag)
	}
	return s[len(prefix):], nil
}

// ParseCommand splits a `c...<user> <command>\0` payload into user and
// command. The command may itself contain spaces; only the first space
// separates user from command.
func ParseCommand(payload []byte) (user, command string, err error) {
	rest, err := trimHeader(payload, 'c')
	if err != nil {
		return "", "", err
	}
	idx := strings.IndexByte(rest, ' ')
	if idx < 0 {
		return rest, "", nil
	}
	return rest[:idx], rest[idx+1:], nil
}

// ParseInject splits an `i...<user> <size> <path>\0` payload.
func ParseInject(payload []byte) (user string, size int64, path string, err error) {
	rest, err := trimHeader(payload, 'i')
	if err != nil {
		return "", 0, "", err
	}
	fields := strings.SplitN(rest, " ", 3)
	if len(fields) != 3 {
		return "", 0, "", fmt.Errorf("protocol: malformed inject header")
	}
	size, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", 0, "", fmt.Errorf("protocol: malformed inject size: %w", err)
	}
	return fields[0], size, fields[2], nil
}

// ParseExtract splits an `e...<user> <path>\0` payload.
func ParseExtract(payload []byte) (user, path string, err error) {
	rest, err := trimHeader(payload, 'e')
	if err != nil {
		return "", "", err
	}
	idx := strings.IndexByte(rest, ' ')
	if idx < 0 {
		return "", "", fmt.Errorf("protocol: malformed extract header")
	}
	return rest[:idx], rest[idx+1:], nil
}

// FormatUint renders a decimal-ASCII payload for 's', 'M', or 'm' packets.
func FormatUint(value int) []byte {
	return []byte(strconv.Itoa(value))
}

// ParseUint parses a decimal-ASCII payload from an 's', 'M', or 'm' packet.
func ParseUint(payload []byte) (int, error) {
	s := strings.TrimRight(string(payload), "\x00")
	return strconv.Atoi(strings.TrimSpace(s))
}
