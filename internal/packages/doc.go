// Package packages maps commands to the Debian packages that provide them and
// computes what installed packages bring along.
//
// CommandResolver answers "which package ships this command", ClosureResolver
// answers "what does this package pull in and which binaries does that
// install". Both share a ResolutionContext, which memoizes every answer and
// every raw metadata query for the lifetime of one run, so each external
// query is issued at most once per key even when a Prefetcher fans the work
// out over several goroutines.
//
// Metadata failures never propagate: an unanswered query is an empty answer.
package packages
