package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Manage commands",
}

var commandSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new command",
	RunE:  runCommandSubmit,
}

var commandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List commands",
	RunE:  runCommandList,
}

var commandShowCmd = &cobra.Command{
	Use:   "show [command-id]",
	Short: "Show command details",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommandShow,
}

var commandEventsCmd = &cobra.Command{
	Use:   "events [command-id]",
	Short: "Show the audit trail for a command",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommandEvents,
}

var (
	commandType    string
	commandPayload string
	commandStatus  string
)

func init() {
	commandCmd.AddCommand(commandSubmitCmd, commandListCmd, commandShowCmd, commandEventsCmd)

	commandSubmitCmd.Flags().StringVar(&commandType, "type", "", "Command type (DELAY, HTTP_GET_JSON)")
	commandSubmitCmd.Flags().StringVar(&commandPayload, "payload", "", `Command payload as JSON (e.g. '{"ms":100}')`)
	commandSubmitCmd.MarkFlagRequired("type")
	commandSubmitCmd.MarkFlagRequired("payload")

	commandListCmd.Flags().StringVar(&commandStatus, "status", "", "Filter by status (pending, running, completed, failed)")
}

func runCommandSubmit(cmd *cobra.Command, args []string) error {
	if !json.Valid([]byte(commandPayload)) {
		return fmt.Errorf("payload is not valid JSON")
	}

	body := map[string]interface{}{
		"type":    commandType,
		"payload": json.RawMessage(commandPayload),
	}

	resp, err := apiPost("/commands", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Submitted command: %s\n", result["id"])
	return nil
}

func runCommandList(cmd *cobra.Command, args []string) error {
	url := "/commands"
	if commandStatus != "" {
		url += "?status=" + commandStatus
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var cmds []map[string]interface{}
	if err := json.Unmarshal(resp, &cmds); err != nil {
		return err
	}

	if len(cmds) == 0 {
		fmt.Println("No commands found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tAGENT")
	for _, c := range cmds {
		id := truncateID(c["id"].(string))
		cmdType := c["type"].(string)
		status := c["status"].(string)
		agentID := ""
		if a, ok := c["agent_id"].(string); ok {
			agentID = a
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, cmdType, status, agentID)
	}
	w.Flush()
	return nil
}

func runCommandShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/commands/" + args[0])
	if err != nil {
		return err
	}

	var c map[string]interface{}
	if err := json.Unmarshal(resp, &c); err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", c["id"])
	fmt.Printf("Type:     %s\n", c["type"])
	fmt.Printf("Status:   %s\n", c["status"])
	if payload, err := json.Marshal(c["payload"]); err == nil {
		fmt.Printf("Payload:  %s\n", payload)
	}
	if result, ok := c["result"]; ok && result != nil {
		data, _ := json.Marshal(result)
		fmt.Printf("Result:   %s\n", data)
	}
	if a, ok := c["agent_id"].(string); ok && a != "" {
		fmt.Printf("Agent:    %s\n", a)
	}
	fmt.Printf("Created:  %s\n", c["created_at"])
	fmt.Printf("Updated:  %s\n", c["updated_at"])
	if at, ok := c["assigned_at"].(string); ok && at != "" {
		fmt.Printf("Assigned: %s\n", at)
	}

	return nil
}

func runCommandEvents(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/commands/" + args[0] + "/events")
	if err != nil {
		return err
	}

	var events []map[string]interface{}
	if err := json.Unmarshal(resp, &events); err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tDETAILS")
	for _, ev := range events {
		details := ""
		if d, ok := ev["details"].(string); ok {
			details = d
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev["timestamp"], ev["action"], ev["outcome"], details)
	}
	w.Flush()
	return nil
}

// --- Helpers ---

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
