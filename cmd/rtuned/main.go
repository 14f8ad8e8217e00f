// Package main is the single-binary entrypoint for rtuned.
package main

import "github.com/tnidigan/userspace-resource-manager/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
