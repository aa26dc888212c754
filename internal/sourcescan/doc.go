// Package sourcescan finds the shell commands a Go project spawns.
//
// The Extractor parses one file and reports literal program names passed to
// process-spawning calls such as exec.Command, including the first command of
// an "sh -c" script. Only statically known text is considered: for
// concatenations and fmt.Sprintf formats, scanning stops at the first
// operand or verb whose value is computed at run time.
//
// The Scanner walks project directories in priority order and keeps the first
// invocation of every command.
package sourcescan
