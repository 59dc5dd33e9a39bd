package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Umareee/messenger-crm/internal/apiclient"
	"github.com/Umareee/messenger-crm/internal/config"
	"github.com/Umareee/messenger-crm/internal/daemon"
	"github.com/Umareee/messenger-crm/internal/profile"
	"github.com/Umareee/messenger-crm/internal/store"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	token, err := daemon.ReadBridgeToken(profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.LoadOrDefault(profile.ConfigPath())
	c := apiclient.New(cfg.Addr(), token)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "sync":
		cmdSync(ctx, c)
	case "tags":
		cmdTags(ctx, c, *jsonFlag)
	case "contacts":
		cmdContacts(ctx, c, *jsonFlag)
	case "templates":
		cmdTemplates(ctx, c, *jsonFlag)
	case "campaigns":
		cmdCampaigns(ctx, c, args[1:], *jsonFlag)
	case "friend-requests":
		cmdFriendRequests(ctx, c, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: crmctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                     Show daemon and companion status")
	fmt.Fprintln(os.Stderr, "  sync                       Force a full snapshot push to the companion")
	fmt.Fprintln(os.Stderr, "  tags                       List tags")
	fmt.Fprintln(os.Stderr, "  contacts                   List contacts")
	fmt.Fprintln(os.Stderr, "  templates                  List templates")
	fmt.Fprintln(os.Stderr, "  campaigns list             List campaigns")
	fmt.Fprintln(os.Stderr, "  campaigns show <id>        Show one campaign")
	fmt.Fprintln(os.Stderr, "  campaigns errors <id>      Show a campaign's error log")
	fmt.Fprintln(os.Stderr, "  campaigns start <id>       Dispatch a campaign now")
	fmt.Fprintln(os.Stderr, "  campaigns pause <id>       Pause an in-progress campaign")
	fmt.Fprintln(os.Stderr, "  campaigns resume <id>      Resume a paused campaign")
	fmt.Fprintln(os.Stderr, "  campaigns cancel <id>      Cancel a campaign")
	fmt.Fprintln(os.Stderr, "  friend-requests            List tracked friend requests")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdStatus(ctx context.Context, c *apiclient.Client, jsonOut bool) {
	if err := c.Health(ctx); err != nil {
		fatal(err)
	}
	status, err := c.ExtensionStatus(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(status)
		return
	}
	fmt.Println("Daemon:    running")
	fmt.Printf("Extension: installed=%v connected=%v\n", status.Installed, status.Connected)
	if status.Version != "" {
		fmt.Printf("Version:   %s (%s)\n", status.Version, status.Runtime)
	}
	if status.LastError != "" {
		fmt.Printf("Last error: %s\n", status.LastError)
	}
}

func cmdSync(ctx context.Context, c *apiclient.Client) {
	if err := c.SyncNow(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("Snapshot push triggered.")
}

func cmdTags(ctx context.Context, c *apiclient.Client, jsonOut bool) {
	tags, err := c.ListTags(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(tags)
		return
	}
	for _, tag := range tags {
		fmt.Printf("%s  %-24s %s  %d contacts\n", tag.ID, tag.Name, tag.Color, tag.ContactCount)
	}
}

func cmdContacts(ctx context.Context, c *apiclient.Client, jsonOut bool) {
	contacts, err := c.ListContacts(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	for _, contact := range contacts {
		sendable := " "
		if contact.PlatformUserID != "" {
			sendable = "*"
		}
		fmt.Printf("%s %s  %-32s %s\n", sendable, contact.ID, contact.Name, contact.Source)
	}
}

func cmdTemplates(ctx context.Context, c *apiclient.Client, jsonOut bool) {
	templates, err := c.ListTemplates(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(templates)
		return
	}
	for _, tpl := range templates {
		fmt.Printf("%s  %s\n", tpl.ID, tpl.Name)
	}
}

func cmdCampaigns(ctx context.Context, c *apiclient.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		campaigns, err := c.ListCampaigns(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(campaigns)
			return
		}
		for _, cmp := range campaigns {
			fmt.Printf("%s  %-24s %-12s %d/%d sent, %d failed\n",
				cmp.ID, cmp.Name, cmp.Status, cmp.SuccessCount, cmp.TotalRecipients, cmp.FailureCount)
		}
	case "show", "errors", "start", "pause", "resume", "cancel":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "usage: crmctl campaigns %s <id>\n", args[0])
			os.Exit(1)
		}
		cmdCampaignAction(ctx, c, args[0], args[1], jsonOut)
	default:
		fmt.Fprintf(os.Stderr, "unknown campaigns subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdCampaignAction(ctx context.Context, c *apiclient.Client, action, id string, jsonOut bool) {
	if action == "errors" {
		errs, err := c.ListCampaignErrors(ctx, id)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(errs)
			return
		}
		for _, e := range errs {
			fmt.Printf("%s  %-24s %s\n", time.UnixMilli(e.OccurredAt).Format(time.RFC3339), e.ContactName, e.Message)
		}
		return
	}

	var cmp *store.Campaign
	var err error
	switch action {
	case "show":
		cmp, err = c.GetCampaign(ctx, id)
	case "start":
		cmp, err = c.StartCampaign(ctx, id)
	case "pause":
		cmp, err = c.PauseCampaign(ctx, id)
	case "resume":
		cmp, err = c.ResumeCampaign(ctx, id)
	case "cancel":
		cmp, err = c.CancelCampaign(ctx, id)
	}
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(cmp)
		return
	}
	fmt.Printf("Campaign: %s (%s)\n", cmp.Name, cmp.ID)
	fmt.Printf("Status:   %s\n", cmp.Status)
	fmt.Printf("Progress: %d/%d sent, %d failed\n", cmp.SuccessCount, cmp.TotalRecipients, cmp.FailureCount)
	if cmp.ScheduledAt > 0 {
		fmt.Printf("Scheduled: %s\n", time.UnixMilli(cmp.ScheduledAt).Format(time.RFC3339))
	}
}

func cmdFriendRequests(ctx context.Context, c *apiclient.Client, jsonOut bool) {
	reqs, err := c.ListFriendRequests(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(reqs)
		return
	}
	for _, fr := range reqs {
		fmt.Printf("%s  %-24s %-10s %s\n",
			fr.ID, fr.Name, fr.Status, time.UnixMilli(fr.SentAt).Format(time.RFC3339))
	}
}
