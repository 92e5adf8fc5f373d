package main

import (
	"fmt"
	"io"
	"strings"
)

func runReputationCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, repUsage())
		return 1
	}

	switch args[0] {
	case "balance":
		fs := newFlagSet("rep balance", stderr, repUsage)
		var address string
		fs.StringVar(&address, "address", "", "account to query")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := requireAddress("address", address)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return invoke(stdout, stderr, "reputation_balanceOf", map[string]interface{}{"address": addr}, false)
	case "transfer":
		return runReputationMove("rep transfer", "reputation_transfer", "to", args[1:], stdout, stderr)
	case "mint":
		return runReputationMove("rep mint", "reputation_mint", "to", args[1:], stdout, stderr)
	case "burn":
		return runReputationMove("rep burn", "reputation_burn", "from", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown rep subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, repUsage())
		return 1
	}
}

func repUsage() string {
	return strings.TrimSpace(`Usage:
  gig-cli rep <command> [flags]

Commands:
  balance   Reputation held by an address (--address)
  transfer  Move reputation to another account (--to, --amount)
  mint      Arbiter only: mint reputation (--to, --amount)
  burn      Arbiter only: burn reputation (--from, --amount)
`)
}

func runReputationMove(name, method, party string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, repUsage)
	var address, amount string
	fs.StringVar(&address, party, "", "counterparty account")
	fs.StringVar(&amount, "amount", "", "reputation amount")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, err := requireAddress(party, address)
	if err != nil {
		return printError(stderr, err.Error())
	}
	normalized, err := normalizeAmount("amount", amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, method, map[string]interface{}{
		party:    addr,
		"amount": normalized,
	}, true)
}

func runBalanceCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr, usage)
	var address string
	fs.StringVar(&address, "address", "", "account to query")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, err := requireAddress("address", address)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "bank_balance", map[string]interface{}{"address": addr}, false)
}

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr, usage)
	var from uint64
	var limit int
	fs.Uint64Var(&from, "from", 1, "first sequence number")
	fs.IntVar(&limit, "limit", 100, "maximum number of records")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if limit <= 0 {
		return printError(stderr, "--limit must be positive")
	}
	return invoke(stdout, stderr, "events_list", map[string]interface{}{
		"from":  from,
		"limit": limit,
	}, false)
}
