// Package main is the entry point for the inventorius shell and CLI.
//
//	@title			Inventorius API
//	@version		1.0
//	@description	Bins, SKUs and batches with hypermedia operations.
//	@BasePath		/api
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal
	_ = godotenv.Load()

	Execute()
}
