package main

import (
	"log"

	"github.com/MrSnakeDoc/pause/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ pause failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ pause stopped with error: %v", err)
	}
}
