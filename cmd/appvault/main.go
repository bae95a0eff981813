package main

import (
	"log"

	"github.com/MrSnakeDoc/appvault/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ appvault failed to start: %v", err)
	}
}
