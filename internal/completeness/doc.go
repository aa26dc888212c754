// Package completeness reconciles the packages a project needs with the packages each Dockerfile stage installs.
package completeness
