package twopence

// ValidUsername reports whether name is non-empty and consists only of
// [A-Za-z0-9_]. This is a defensive constraint on the command shell line,
// not a full POSIX user-name check.
func ValidUsername(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case '0' <= c && c <= '9':
		case 'A' <= c && c <= 'Z':
		case 'a' <= c && c <= 'z':
		case c == '_':
		default:
			return false
		}
	}
	return true
}
