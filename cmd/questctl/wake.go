package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thomasnguyen/corgi-quest/internal/wakeword"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "wake",
		Short: "Run the wake-word gate over transcript lines read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWake(os.Stdin, os.Stdout)
		},
	})
}

// runWake prints one JSON detection result per non-blank input line.
func runWake(in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := enc.Encode(wakeword.Detect(line)); err != nil {
			return err
		}
	}
	return sc.Err()
}
