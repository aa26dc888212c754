// Package audit runs the Dockerfile completeness audit.
//
// Service drives the pipeline programmatically: it scans Go sources for spawned
// commands, resolves each command to the Debian package providing it, derives
// module requirements from go.mod, parses the Dockerfile's build stages and hands
// the reconciled report to a sink. CommandBuilder wires the Service behind the
// audit cobra command using dpkg, apt-file and apt-cache on the host.
package audit
