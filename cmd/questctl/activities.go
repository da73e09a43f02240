package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

func init() {
	activitiesCmd := &cobra.Command{Use: "activities", Short: "Activity operations"}

	// log
	var name, notes, catalogType string
	var minutes, intXP, phyXP, impXP, socXP int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Log an activity, either from the catalog (--type) or with explicit XP",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path    string
				payload interface{}
				err     error
			)
			if catalogType != "" {
				path, err = householdPath("/activities/catalog")
				payload = map[string]interface{}{"activityType": catalogType, "durationMinutes": minutes}
			} else {
				if name == "" {
					return fmt.Errorf("--name or --type required")
				}
				path, err = householdPath("/activities")
				payload = manualReport(name, notes, minutes, intXP, phyXP, impXP, socXP)
			}
			if err != nil {
				return err
			}
			data, err := client().postJSON(cmd.Context(), path, payload)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	}
	logCmd.Flags().StringVar(&catalogType, "type", "", "Catalog activity type, e.g. walk or fetch")
	logCmd.Flags().StringVarP(&name, "name", "n", "", "Activity name for a manual entry")
	logCmd.Flags().StringVar(&notes, "notes", "", "Optional notes")
	logCmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "Duration in minutes")
	logCmd.Flags().IntVar(&intXP, "int", 0, "Intelligence XP")
	logCmd.Flags().IntVar(&phyXP, "phy", 0, "Physical XP")
	logCmd.Flags().IntVar(&impXP, "imp", 0, "Impulse control XP")
	logCmd.Flags().IntVar(&socXP, "soc", 0, "Social XP")
	activitiesCmd.AddCommand(logCmd)

	// list
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "/activities?limit="+strconv.Itoa(limit))
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum activities to return")
	activitiesCmd.AddCommand(listCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete ACTIVITY_ID",
		Short: "Delete an activity record (XP is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := householdPath("/activities/" + args[0])
			if err != nil {
				return err
			}
			_, err = client().delete(cmd.Context(), path)
			return err
		},
	}
	activitiesCmd.AddCommand(deleteCmd)

	// catalog
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the activity catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().get(cmd.Context(), "/api/activity-catalog")
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	}
	activitiesCmd.AddCommand(catalogCmd)

	rootCmd.AddCommand(activitiesCmd)
}

// manualReport builds a full report from per-stat XP. Points follow the
// physical/mental split used for daily goals.
func manualReport(name, notes string, minutes, intXP, phyXP, impXP, socXP int) *model.ActivityReport {
	var dur *int
	if minutes > 0 {
		dur = &minutes
	}
	r := model.NewActivityReport(name, dur, map[model.StatType]int{
		model.StatIntelligence:   intXP,
		model.StatPhysical:       phyXP,
		model.StatImpulseControl: impXP,
		model.StatSocial:         socXP,
	}, phyXP, intXP+impXP+socXP)
	if notes != "" {
		r.Notes = &notes
	}
	return r
}
