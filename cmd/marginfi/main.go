package main

import (
	"os"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
