package main

import (
	"os"
)

func main() {
	// Cobra печатает ошибку сама
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
