package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}
	Execute()
}
