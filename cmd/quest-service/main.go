package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/thomasnguyen/corgi-quest/internal/questservice"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := questservice.Run(); err != nil {
		log.Error().Err(err).Msg("quest-service exited with error")
		os.Exit(1)
	}
}
