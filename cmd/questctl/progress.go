package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	// goals
	goalsCmd := &cobra.Command{
		Use:   "goals",
		Short: "Show today's goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "/goals/today")
		},
	}
	var physical, mental int
	setGoalsCmd := &cobra.Command{
		Use:   "set",
		Short: "Change today's targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := householdPath("/goals/today")
			if err != nil {
				return err
			}
			data, err := client().putJSON(cmd.Context(), path, map[string]int{"physicalTarget": physical, "mentalTarget": mental})
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	}
	setGoalsCmd.Flags().IntVarP(&physical, "physical", "p", 60, "Physical target")
	setGoalsCmd.Flags().IntVarP(&mental, "mental", "m", 40, "Mental target")
	goalsCmd.AddCommand(setGoalsCmd)
	rootCmd.AddCommand(goalsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "streak",
		Short: "Show the household streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "/streak")
		},
	})

	// moods
	moodsCmd := &cobra.Command{Use: "moods", Short: "Mood log operations"}
	var note string
	moodLogCmd := &cobra.Command{
		Use:   "log MOOD",
		Short: "Log the dog's mood (happy, calm, excited, anxious, tired, grumpy)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := householdPath("/moods")
			if err != nil {
				return err
			}
			payload := map[string]interface{}{"mood": args[0]}
			if note != "" {
				payload["note"] = note
			}
			data, err := client().postJSON(cmd.Context(), path, payload)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	}
	moodLogCmd.Flags().StringVar(&note, "note", "", "Optional note")
	moodsCmd.AddCommand(moodLogCmd)
	var moodLimit int
	moodListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent moods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "/moods?limit="+strconv.Itoa(moodLimit))
		},
	}
	moodListCmd.Flags().IntVarP(&moodLimit, "limit", "l", 20, "Maximum moods to return")
	moodsCmd.AddCommand(moodListCmd)
	rootCmd.AddCommand(moodsCmd)

	// cosmetics
	cosmeticsCmd := &cobra.Command{
		Use:   "cosmetics",
		Short: "List cosmetics with unlocked and equipped flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "/cosmetics")
		},
	}
	cosmeticsCmd.AddCommand(&cobra.Command{
		Use:   "equip ITEM_ID",
		Short: "Equip an unlocked item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := householdPath("/cosmetics/equipped")
			if err != nil {
				return err
			}
			data, err := client().putJSON(cmd.Context(), path, map[string]string{"itemId": args[0]})
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	})
	cosmeticsCmd.AddCommand(&cobra.Command{
		Use:   "unequip",
		Short: "Remove the equipped item",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := householdPath("/cosmetics/equipped")
			if err != nil {
				return err
			}
			_, err = client().delete(cmd.Context(), path)
			return err
		},
	})
	rootCmd.AddCommand(cosmeticsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "recommendations",
		Short: "Ask for this week's training recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := householdPath("/recommendations/weekly")
			if err != nil {
				return err
			}
			data, err := client().postJSON(cmd.Context(), path, nil)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	})
}
