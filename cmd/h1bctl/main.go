// Command h1bctl runs the dashboard views from a terminal and prints them
// as tables.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
