// Package main provides the heliosctl extension tooling CLI.
package main

import "os"

func main() {
	os.Exit(Execute())
}
