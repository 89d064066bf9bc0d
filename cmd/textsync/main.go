package main

import (
	"log"

	"github.com/MrSnakeDoc/textsync/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ textsync failed to start: %v", err)
	}
}
