package main

import (
	"github.com/joho/godotenv"

	"github.com/oshokin/chromedriver-publisher/cmd/chromedriver-publisher/cmd"
)

func main() {
	// Optional .env next to the binary may supply CHROMEDRIVER_PATH.
	_ = godotenv.Load()

	cmd.Execute()
}
