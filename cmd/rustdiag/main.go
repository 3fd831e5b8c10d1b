package main

import (
	"os"
)

// retryArgs are the command-line arguments, for retry suggestions.
var retryArgs []string

func main() {
	retryArgs = os.Args[1:]

	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
