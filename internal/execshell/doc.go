// Package execshell provides structured helpers for invoking the OS package
// tooling consulted during an audit.
//
// ShellExecutor wraps a CommandRunner with zap logging, a per-command timeout,
// and lifecycle notifications. OSCommandRunner is the os/exec backed runner.
// dpkg, apt-file, and apt-cache invocations go through the typed wrappers so
// callers can be exercised against recorded runners in tests.
package execshell
