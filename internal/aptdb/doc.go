// Package aptdb queries the Debian package database for dockwise.
//
// It wraps dpkg, apt-file and apt-cache behind typed operations and parses
// their output. Commands that exit non-zero because nothing matched produce
// empty answers; commands that could not run at all surface as OperationError
// so callers can decide how much to trust a miss.
package aptdb
