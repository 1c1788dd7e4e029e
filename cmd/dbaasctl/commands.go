// ABOUTME: Implementations of the db, region, and status subcommands.
// ABOUTME: Wraps the API client and renders table or JSON output.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
)

func runDatabaseCommand(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	if len(args) == 0 {
		printDatabaseUsage()
		return fmt.Errorf("db command required")
	}
	switch args[0] {
	case "list":
		return runDatabaseList(ctx, client, opts)
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: dbaasctl db show <id>")
		}
		return runDatabaseShow(ctx, client, args[1], opts)
	case "create":
		return runDatabaseCreate(ctx, client, args[1:], opts)
	case "update":
		return runDatabaseUpdate(ctx, client, args[1:], opts)
	case "delete":
		return runDatabaseDelete(ctx, client, args[1:], opts)
	case "reconfigure":
		return runDatabaseReconfigure(ctx, client, args[1:], opts)
	case "activate":
		return runDatabaseActivate(ctx, client, args[1:], opts)
	default:
		printDatabaseUsage()
		return fmt.Errorf("unknown db command %q", args[0])
	}
}

func runDatabaseList(ctx context.Context, client *apiClient, opts globalOptions) error {
	var resp databaseListResponse
	if err := client.doJSON(ctx, http.MethodGet, "/v1/databases", nil, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	printDatabaseList(resp.Databases)
	return nil
}

func runDatabaseShow(ctx context.Context, client *apiClient, id string, opts globalOptions) error {
	var resp databaseResponse
	if err := client.doJSON(ctx, http.MethodGet, "/v1/databases/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	printDatabase(resp)
	return nil
}

func runDatabaseCreate(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	fs := newFlagSet("db create")
	name := fs.String("name", "", "database name")
	description := fs.String("description", "", "free-text description")
	workload := fs.String("workload", "", "workload size (small, medium, large)")
	region := fs.String("region", "", "region id")
	contact := fs.String("contact", "", "technical contact user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *workload == "" || *region == "" || *contact == "" {
		return fmt.Errorf("usage: dbaasctl db create --name <name> --workload <w> --region <id> --contact <user_id> [--description <text>]")
	}
	body := map[string]any{
		"name":         *name,
		"description":  *description,
		"workload":     *workload,
		"region":       map[string]string{"id": *region},
		"tech_contact": map[string]string{"id": *contact},
	}
	var resp databaseResponse
	if err := client.doJSON(ctx, http.MethodPost, "/v1/databases", body, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	printDatabase(resp)
	return nil
}

func runDatabaseUpdate(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: dbaasctl db update <id> [--name <name>] [--description <text>] [--contact <user_id>]")
	}
	id := args[0]
	fs := newFlagSet("db update")
	name := fs.String("name", "", "database name")
	description := fs.String("description", "", "free-text description")
	contact := fs.String("contact", "", "technical contact user id")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	body := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			body["name"] = *name
		case "description":
			body["description"] = *description
		case "contact":
			body["tech_contact"] = map[string]string{"id": *contact}
		}
	})
	if len(body) == 0 {
		return fmt.Errorf("nothing to update")
	}
	var resp databaseResponse
	if err := client.doJSON(ctx, http.MethodPut, "/v1/databases/"+url.PathEscape(id), body, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	printDatabase(resp)
	return nil
}

func runDatabaseDelete(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: dbaasctl db delete <id> [--force]")
	}
	id := args[0]
	fs := newFlagSet("db delete")
	force := fs.Bool("force", false, "delete without prompting")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := confirmDelete(id, *force); err != nil {
		return err
	}
	var resp databaseResponse
	if err := client.doJSON(ctx, http.MethodDelete, "/v1/databases/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	fmt.Printf("Database %s deleted\n", resp.ID)
	return nil
}

func runDatabaseReconfigure(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: dbaasctl db reconfigure <id> [--action <update|delete>] [--details <text>]")
	}
	id := args[0]
	fs := newFlagSet("db reconfigure")
	action := fs.String("action", "", "requested action (update or delete)")
	details := fs.String("details", "", "free-text change details")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	body := map[string]any{}
	if *action != "" {
		body["action"] = *action
	}
	if *details != "" {
		body["details"] = *details
	}
	var resp databaseResponse
	if err := client.doJSON(ctx, http.MethodPost, "/v1/databases/"+url.PathEscape(id)+"/reconfigure", body, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	printDatabase(resp)
	return nil
}

func runDatabaseActivate(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: dbaasctl db activate <id> [--workload <w>] [--host <h> --username <u> --password <p> [--db-name <n>]]")
	}
	id := args[0]
	fs := newFlagSet("db activate")
	workload := fs.String("workload", "", "workload size to apply")
	host := fs.String("host", "", "database host")
	username := fs.String("username", "", "database username")
	password := fs.String("password", "", "database password")
	dbName := fs.String("db-name", "", "database name on the server")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	body := map[string]any{}
	if *workload != "" {
		body["workload"] = *workload
	}
	if *host != "" || *username != "" || *password != "" {
		body["credentials"] = map[string]string{
			"host":     *host,
			"username": *username,
			"password": *password,
			"name":     *dbName,
		}
	}
	var resp databaseResponse
	if err := client.doJSON(ctx, http.MethodPost, "/v1/databases/"+url.PathEscape(id)+"/activate", body, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	printDatabase(resp)
	return nil
}

func runRegionCommand(ctx context.Context, client *apiClient, args []string, opts globalOptions) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: dbaasctl region <list|show|add>")
	}
	switch args[0] {
	case "list":
		var resp regionListResponse
		if err := client.doJSON(ctx, http.MethodGet, "/v1/regions", nil, &resp); err != nil {
			return err
		}
		if opts.jsonOutput {
			return printJSON(resp)
		}
		printRegionList(resp.Regions)
		return nil
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: dbaasctl region show <id>")
		}
		var resp regionResponse
		if err := client.doJSON(ctx, http.MethodGet, "/v1/regions/"+url.PathEscape(args[1]), nil, &resp); err != nil {
			return err
		}
		if opts.jsonOutput {
			return printJSON(resp)
		}
		fmt.Printf("ID: %s\nName: %s\n", resp.ID, resp.Name)
		return nil
	case "add":
		fs := newFlagSet("region add")
		id := fs.String("id", "", "region id")
		name := fs.String("name", "", "region display name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" || *name == "" {
			return fmt.Errorf("usage: dbaasctl region add --id <id> --name <name>")
		}
		var resp regionResponse
		if err := client.doJSON(ctx, http.MethodPost, "/v1/regions", map[string]string{"id": *id, "name": *name}, &resp); err != nil {
			return err
		}
		if opts.jsonOutput {
			return printJSON(resp)
		}
		fmt.Printf("Region %s (%s) added\n", resp.ID, resp.Name)
		return nil
	default:
		return fmt.Errorf("unknown region command %q", args[0])
	}
}

func runStatusCommand(ctx context.Context, client *apiClient, opts globalOptions) error {
	var resp statusResponse
	if err := client.doJSON(ctx, http.MethodGet, "/v1/status", nil, &resp); err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(resp)
	}
	fmt.Printf("Version: %s\n", resp.Version)
	statuses := make([]string, 0, len(resp.Databases))
	for status := range resp.Databases {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("Databases %s: %d\n", status, resp.Databases[status])
	}
	return nil
}

func confirmDelete(id string, force bool) error {
	if force {
		return nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("refusing to delete %s without --force in non-interactive mode", id)
	}
	fmt.Fprintf(os.Stderr, "Delete database %s? Type 'yes' to continue: ", id)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(strings.ToLower(line)) != "yes" {
		return fmt.Errorf("aborted")
	}
	return nil
}

func printDatabase(resp databaseResponse) {
	fmt.Printf("ID: %s\n", resp.ID)
	fmt.Printf("Name: %s\n", resp.Name)
	fmt.Printf("Description: %s\n", orDash(resp.Description))
	fmt.Printf("Workload: %s\n", resp.Workload)
	fmt.Printf("Status: %s\n", resp.Status)
	fmt.Printf("Owner: %s\n", resp.Owner.ID)
	fmt.Printf("Region: %s\n", resp.Region.ID)
	fmt.Printf("Contact: %s\n", contactString(resp.TechContact))
	if resp.Case != nil {
		fmt.Printf("Case: %s\n", resp.Case.ID)
	}
	if resp.Credentials != nil {
		fmt.Printf("Host: %s\n", resp.Credentials.Host)
		fmt.Printf("Username: %s\n", resp.Credentials.Username)
		fmt.Printf("Password: %s\n", resp.Credentials.Password)
	}
	fmt.Printf("Created At: %s\n", resp.CreatedAt)
	fmt.Printf("Updated At: %s\n", resp.UpdatedAt)
}

func printDatabaseList(databases []databaseResponse) {
	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWORKLOAD\tSTATUS\tREGION\tCONTACT\tCASE")
	for _, d := range databases {
		caseID := "-"
		if d.Case != nil {
			caseID = d.Case.ID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Name, d.Workload, d.Status, d.Region.ID, d.TechContact.ID, caseID)
	}
	_ = w.Flush()
}

func printRegionList(regions []regionResponse) {
	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, r := range regions {
		fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Name)
	}
	_ = w.Flush()
}

func printJSON(payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func contactString(contact contactPayload) string {
	if contact.Name == "" {
		return contact.ID
	}
	return fmt.Sprintf("%s (%s)", contact.ID, contact.Name)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func printDatabaseUsage() {
	fmt.Fprintln(os.Stdout, "Usage: dbaasctl db <list|show|create|update|delete|reconfigure|activate>")
}
