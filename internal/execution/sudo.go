package execution

import "strings"

const (
	sudoPrefix         = "sudo "
	nonInteractiveSudo = `sudo -S -p "" `
)

// Elevate prefixes command with sudo unless it already starts with it.
func Elevate(command string) string {
	trimmed := strings.TrimSpace(command)
	if trimmed == "sudo" || strings.HasPrefix(trimmed, sudoPrefix) {
		return command
	}
	return sudoPrefix + command
}

// NonInteractiveSudo rewrites a leading sudo to read the password from
// stdin without printing a prompt. It reports whether a rewrite happened.
func NonInteractiveSudo(command string) (string, bool) {
	trimmed := strings.TrimSpace(command)
	if !strings.HasPrefix(trimmed, sudoPrefix) {
		return command, false
	}
	return strings.Replace(trimmed, sudoPrefix, nonInteractiveSudo, 1), true
}

// Redact replaces every occurrence of secret in s.
func Redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "********")
}
