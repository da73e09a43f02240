package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	householdsCmd := &cobra.Command{Use: "households", Short: "Household operations"}

	// create
	var householdName, memberName, dogName, tz string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a household with its first member and dog",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"householdName": householdName,
				"memberName":    memberName,
				"dogName":       dogName,
			}
			if tz != "" {
				payload["timeZone"] = tz
			}
			data, err := client().postJSON(cmd.Context(), "/api/households", payload)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	}
	createCmd.Flags().StringVarP(&householdName, "name", "n", "", "Household name (required)")
	createCmd.Flags().StringVarP(&memberName, "member", "m", "", "Your name (required)")
	createCmd.Flags().StringVarP(&dogName, "dog", "d", "", "Dog name (required)")
	createCmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for day boundaries (defaults to the service zone)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("member")
	_ = createCmd.MarkFlagRequired("dog")
	householdsCmd.AddCommand(createCmd)

	// join
	var inviteCode, joinName string
	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Join a household with an invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().postJSON(cmd.Context(), "/api/households/join", map[string]string{
				"inviteCode": inviteCode,
				"name":       joinName,
			})
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		},
	}
	joinCmd.Flags().StringVarP(&inviteCode, "code", "c", "", "Invite code (required)")
	joinCmd.Flags().StringVarP(&joinName, "member", "m", "", "Your name (required)")
	_ = joinCmd.MarkFlagRequired("code")
	_ = joinCmd.MarkFlagRequired("member")
	householdsCmd.AddCommand(joinCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the household, its members and the dog profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "")
		},
	}
	householdsCmd.AddCommand(getCmd)

	rootCmd.AddCommand(householdsCmd)
}

// getAndPrint GETs a household-scoped path and pretty-prints the body.
func getAndPrint(cmd *cobra.Command, suffix string) error {
	path, err := householdPath(suffix)
	if err != nil {
		return err
	}
	data, err := client().get(cmd.Context(), path)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, data)
}

func printJSON(out io.Writer, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprintln(out, buf.String())
	return err
}
