package subexec

import "strings"

// shellMeta are the characters that make a command line need a shell.
const shellMeta = "*?{}[]<>()~&|\\$;'`\"\n#"

// shellWords are reserved words and special builtins; a command starting with one
// only means something to the shell.
var shellWords = map[string]bool{
	"case": true, "do": true, "done": true, "elif": true, "else": true, "esac": true,
	"fi": true, "for": true, "if": true, "in": true, "then": true, "until": true,
	"while": true, "!": true, ".": true, ":": true, "break": true, "continue": true,
	"eval": true, "exec": true, "exit": true, "export": true, "readonly": true,
	"return": true, "set": true, "shift": true, "times": true, "trap": true, "unset": true,
}

// splitSimple returns the argv of a command line that can be executed without a
// shell: no metacharacters, no leading variable assignment, no shell keyword.
func splitSimple(command string) ([]string, bool) {
	if strings.ContainsAny(command, shellMeta) {
		return nil, false
	}
	argv := strings.Fields(command)
	if len(argv) == 0 || shellWords[argv[0]] || strings.Contains(argv[0], "=") {
		return nil, false
	}
	return argv, true
}
