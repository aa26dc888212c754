// Package ui turns package tooling events into console feedback.
//
// Routine lookups are reported at debug level so that a default run only
// surfaces queries that could not be answered and a closing summary.
package ui
