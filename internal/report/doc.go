// Package report renders completeness reports as text, YAML or JSON.
package report
