// Package main is the entry point for storeinit, the one-time database
// initializer of the internet-store backend.
package main

func main() {
	Execute()
}
