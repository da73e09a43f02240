package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/thomasnguyen/corgi-quest/internal/artworker"
)

func main() {
	_ = godotenv.Load()

	if err := artworker.Run(); err != nil {
		log.Error().Err(err).Msg("quest-worker exited with error")
		os.Exit(1)
	}
}
