package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via GIG_RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("GIG_RPC_TOKEN")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	switch args[0] {
	case "job":
		return runJobCommand(args[1:], stdout, stderr)
	case "dao":
		return runDAOCommand(args[1:], stdout, stderr)
	case "rep":
		return runReputationCommand(args[1:], stdout, stderr)
	case "balance":
		return runBalanceCommand(args[1:], stdout, stderr)
	case "events":
		return runEventsCommand(args[1:], stdout, stderr)
	case "token":
		return runTokenCommand(args[1:], stdout, stderr)
	case "key":
		return runKeyCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`Usage:
  gig-cli [--rpc URL] [--token JWT] <command> [flags]

Commands:
  job      Create, fund, deliver and settle escrowed jobs
  dao      Register as juror, open, vote on and resolve disputes
  rep      Query and move reputation
  balance  Show the native balance of an address
  events   List committed events
  token    Issue a development bearer token
  key      Generate or inspect an identity keystore

Environment:
  GIG_RPC_URL    JSON-RPC endpoint (default http://localhost:8080/rpc)
  GIG_RPC_TOKEN  bearer token sent with state-changing calls
  GIG_RPC_JWT_SECRET  signing secret used by the token command
  GIG_KEY_PASSPHRASE  keystore passphrase used by key and token
`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("GIG_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				rpcAuthToken = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--token="):
			rpcAuthToken = strings.TrimPrefix(arg, "--token=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}
