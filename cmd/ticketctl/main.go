// ticketctl is the operator CLI for the ticket bot's admin API.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"

	"github.com/spec-kit/ticket-bot/internal/apiclient"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type command struct {
	usage string
	run   func(c *apiclient.Client, args []string) error
}

var commands = map[string]command{
	"login":    {"login [--scope read|admin]  (password on stdin)", runLogin},
	"tickets":  {"tickets [--status open|closed]", runTickets},
	"ticket":   {"ticket <id>", withID(func(c *apiclient.Client, id int) (any, error) { return c.Ticket(id) })},
	"history":  {"history <id>", withID(func(c *apiclient.Client, id int) (any, error) { return c.History(id) })},
	"purge":    {"purge <id>", withID(func(c *apiclient.Client, id int) (any, error) { return nil, c.Purge(id) })},
	"prune":    {"prune", noArgs(prune)},
	"feedback": {"feedback <moderator-id>", runFeedback},
	"settings": {"settings", noArgs(func(c *apiclient.Client) (any, error) { return c.Settings() })},
	"set":      {"set <roles|categories|channels>.<key>=<id> | settings.<name>=<n> ...", runSet},
	"setup":    {"setup", noArgs(func(c *apiclient.Client) (any, error) { return c.Setup() })},
	"reset":    {"reset", noArgs(func(c *apiclient.Client) (any, error) { return nil, c.Reset() })},
	"teardown": {"teardown", noArgs(func(c *apiclient.Client) (any, error) { return c.Teardown() })},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	flagSet := pflag.NewFlagSet("ticketctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	baseURL := flagSet.String("url", envOr("TICKETCTL_URL", "http://127.0.0.1:8080"), "admin API base URL")
	token := flagSet.String("token", os.Getenv("TICKETCTL_TOKEN"), "bearer token from `ticketctl login`")
	timeout := flagSet.Duration("timeout", 30*time.Second, "request timeout")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) == 0 {
		printUsage(flagSet)
		return fmt.Errorf("missing command")
	}

	if args[0] == "hash-password" {
		return runHashPassword(args[1:])
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(apiclient.New(*baseURL, *token, *timeout), args[1:])
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: ticketctl [flags] <command> [args]\n\nCommands:")
	fmt.Fprintln(os.Stderr, "  hash-password [--cost n]  (password on stdin)")
	for _, name := range []string{"login", "tickets", "ticket", "history", "purge", "prune", "feedback", "settings", "set", "setup", "reset", "teardown"} {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	fmt.Fprint(os.Stderr, flagSet.FlagUsages())
}

func runHashPassword(args []string) error {
	flagSet := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
	cost := flagSet.Int("cost", 12, "bcrypt cost")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	password, err := readSecret()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password, *cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runLogin(c *apiclient.Client, args []string) error {
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	scope := flagSet.String("scope", string(auth.ScopeAdmin), "token scope: read or admin")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	password, err := readSecret()
	if err != nil {
		return err
	}
	resp, err := c.Login(password, *scope)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runTickets(c *apiclient.Client, args []string) error {
	flagSet := pflag.NewFlagSet("tickets", pflag.ContinueOnError)
	status := flagSet.String("status", "", "open or closed")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	tickets, err := c.Tickets(*status)
	if err != nil {
		return err
	}
	return printJSON(tickets)
}

func runFeedback(c *apiclient.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected a moderator id")
	}
	resp, err := c.ModeratorFeedback(args[0])
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runSet(c *apiclient.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("expected at least one assignment")
	}
	patch, err := parsePatch(args)
	if err != nil {
		return err
	}
	resp, err := c.PatchSettings(patch)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// parsePatch turns section.key=value assignments into a settings patch.
func parsePatch(args []string) (service.SettingsPatch, error) {
	var patch service.SettingsPatch
	for _, arg := range args {
		path, value, ok := strings.Cut(arg, "=")
		section, key, okKey := strings.Cut(path, ".")
		if !ok || !okKey || key == "" {
			return patch, fmt.Errorf("malformed assignment %q", arg)
		}
		switch section {
		case "roles":
			patch.Roles = assign(patch.Roles, key, value)
		case "categories":
			patch.Categories = assign(patch.Categories, key, value)
		case "channels":
			patch.Channels = assign(patch.Channels, key, value)
		case "settings":
			n, err := strconv.Atoi(value)
			if err != nil {
				return patch, fmt.Errorf("%s: not a number", path)
			}
			if patch.Limits == nil {
				patch.Limits = &service.LimitsPatch{}
			}
			switch key {
			case "maxTicketsPerUser":
				patch.Limits.MaxTicketsPerUser = &n
			case "ticketDeleteDelay":
				patch.Limits.TicketDeleteDelay = &n
			case "pingDeleteDelay":
				patch.Limits.PingDeleteDelay = &n
			default:
				return patch, fmt.Errorf("unknown setting %q", key)
			}
		default:
			return patch, fmt.Errorf("unknown section %q", section)
		}
	}
	return patch, nil
}

func assign(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m
}

func prune(c *apiclient.Client) (any, error) {
	n, err := c.Prune()
	if err != nil {
		return nil, err
	}
	return map[string]int{"removed": n}, nil
}

func withID(fn func(c *apiclient.Client, id int) (any, error)) func(*apiclient.Client, []string) error {
	return func(c *apiclient.Client, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected a ticket id")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid ticket id %q", args[0])
		}
		out, err := fn(c, id)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}

func noArgs(fn func(c *apiclient.Client) (any, error)) func(*apiclient.Client, []string) error {
	return func(c *apiclient.Client, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("unexpected argument %q", args[0])
		}
		out, err := fn(c)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}

func printJSON(v any) error {
	if v == nil {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func readSecret() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", fmt.Errorf("empty password")
	}
	return line, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
