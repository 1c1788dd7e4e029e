// ABOUTME: CLI entry point and command dispatch for dbaasctl.
// ABOUTME: Parses global flags and routes db, region, and status commands.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dbaasd/dbaasd/internal/buildinfo"
)

const usageText = `dbaasctl is the CLI for the dbaasd control API.

Usage:
  dbaasctl --version
  dbaasctl [global flags] db list
  dbaasctl [global flags] db show <id>
  dbaasctl [global flags] db create --name <name> --workload <small|medium|large> --region <id> --contact <user_id> [--description <text>]
  dbaasctl [global flags] db update <id> [--name <name>] [--description <text>] [--contact <user_id>]
  dbaasctl [global flags] db delete <id> [--force]
  dbaasctl [global flags] db reconfigure <id> [--action <update|delete>] [--details <text>]
  dbaasctl [global flags] db activate <id> [--workload <w>] [--host <h> --username <u> --password <p> [--db-name <n>]]
  dbaasctl [global flags] region list
  dbaasctl [global flags] region show <id>
  dbaasctl [global flags] region add --id <id> --name <name>
  dbaasctl [global flags] status

Global Flags:
  --addr ADDR       dbaasd control address (default 127.0.0.1:8833)
  --account ID      account the call is made for
  --user ID         user the call is made by
  --installation ID extension installation id
  --admin           make the call with admin privileges
  --json            output json
  --timeout         request timeout (e.g. 30s, 2m)
`

var errHelp = errors.New("help requested")

type globalOptions struct {
	addr        string
	identity    identityFlags
	jsonOutput  bool
	timeout     time.Duration
	showVersion bool
}

func main() {
	opts, args, err := parseGlobal(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println(buildinfo.String())
		return
	}
	if len(args) == 0 || isHelpToken(args[0]) {
		printUsage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := dispatch(ctx, args, opts); err != nil {
		if errors.Is(err, errHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseGlobal(args []string) (globalOptions, []string, error) {
	opts := globalOptions{addr: defaultControlAddr, timeout: defaultRequestTimeout}
	fs := flag.NewFlagSet("dbaasctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.addr, "addr", defaultControlAddr, "dbaasd control address")
	fs.StringVar(&opts.identity.account, "account", os.Getenv("DBAASD_ACCOUNT"), "account the call is made for")
	fs.StringVar(&opts.identity.user, "user", os.Getenv("DBAASD_USER"), "user the call is made by")
	fs.StringVar(&opts.identity.installation, "installation", os.Getenv("DBAASD_INSTALLATION"), "extension installation id")
	fs.BoolVar(&opts.identity.admin, "admin", false, "make the call with admin privileges")
	fs.BoolVar(&opts.jsonOutput, "json", false, "output json")
	fs.DurationVar(&opts.timeout, "timeout", defaultRequestTimeout, "request timeout (e.g. 30s, 2m)")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

func dispatch(ctx context.Context, args []string, opts globalOptions) error {
	client := newAPIClient(opts.addr, opts.identity, opts.timeout)
	switch args[0] {
	case "db":
		return runDatabaseCommand(ctx, client, args[1:], opts)
	case "region":
		return runRegionCommand(ctx, client, args[1:], opts)
	case "status":
		return runStatusCommand(ctx, client, opts)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func isHelpToken(arg string) bool {
	switch arg {
	case "help", "-h", "--help":
		return true
	}
	return false
}

func printUsage() {
	_, _ = fmt.Fprint(os.Stdout, usageText)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
