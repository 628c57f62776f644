package main

import (
	"log"

	"github.com/MrSnakeDoc/stacklink/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ stacklink failed to initialize: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ stacklink failed to start: %v", err)
	}
}
