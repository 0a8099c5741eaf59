package main

import (
	"log"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("[appraise] %v", err)
		os.Exit(1)
	}
}
