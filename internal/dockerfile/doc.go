// Package dockerfile reads the apt packages each stage of a Dockerfile installs.
package dockerfile
