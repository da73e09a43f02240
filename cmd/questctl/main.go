package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	apiFlag       string
	tokenFlag     string
	householdFlag string
	rootCmd       = &cobra.Command{
		Use:   "questctl",
		Short: "CLI client for the Corgi Quest REST API",
	}
)

func main() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", envOr("CORGI_QUEST_API", "http://localhost:8080"), "Quest service base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", os.Getenv("CORGI_QUEST_TOKEN"), "Member token from households create/join")
	rootCmd.PersistentFlags().StringVarP(&householdFlag, "household", "H", os.Getenv("CORGI_QUEST_HOUSEHOLD"), "Household ID")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
