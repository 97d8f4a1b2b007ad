// Package main is the entry point for crossbridge.
package main

func main() {
	Execute()
}
