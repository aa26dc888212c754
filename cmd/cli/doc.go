// Package cli builds the dockwise command-line interface: the Cobra root
// command with its persistent configuration and logging flags, the layered
// configuration loader, and the audit subcommand.
package cli
