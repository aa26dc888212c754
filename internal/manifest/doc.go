// Package manifest reads a project's go.mod and go.sum and maps the modules
// found there to the Debian packages they need at build and run time.
package manifest
