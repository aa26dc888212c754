// Package searchpath resolves command names against PATH with a bounded cache.
package searchpath
