// Command subexec runs a shell command with an optional timeout and reports how
// it ended.
//
//	subexec --timeout 30s --stderr build.err -- make all
//
// The child's captured output is copied to subexec's standard output. subexec
// exits with the child's status, 124 when the timeout killed it, and 125 when it
// could not be started.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
