package main

import (
	"fmt"
	"io"
	"strings"
)

func runDAOCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, daoUsage())
		return 1
	}

	switch args[0] {
	case "register":
		fs := newFlagSet("dao register", stderr, daoUsage)
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		return invoke(stdout, stderr, "dao_registerAsJuror", nil, true)
	case "create":
		return runDAOCreate(args[1:], stdout, stderr)
	case "vote":
		return runDAOVote(args[1:], stdout, stderr)
	case "resolve":
		return runDAODispute("dao resolve", "dao_resolveDispute", true, args[1:], stdout, stderr)
	case "get":
		return runDAODispute("dao get", "dao_getDispute", false, args[1:], stdout, stderr)
	case "list":
		return runDAOList(args[1:], stdout, stderr)
	case "jurors":
		return invoke(stdout, stderr, "dao_jurors", nil, false)
	default:
		fmt.Fprintf(stderr, "Unknown dao subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, daoUsage())
		return 1
	}
}

func daoUsage() string {
	return strings.TrimSpace(`Usage:
  gig-cli dao <command> [flags]

Commands:
  register  Register the caller as a juror
  create    Open a dispute (--counterparty, --reason, --fee, optional --job)
  vote      Vote on a dispute (--id, --side client|freelancer)
  resolve   Tally the votes and settle a dispute (--id)
  get       Fetch a dispute (--id)
  list      List disputes (--offset, --limit)
  jurors    List registered jurors
`)
}

func runDAOCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("dao create", stderr, daoUsage)
	var counterparty, reason, fee string
	var jobID uint64
	fs.StringVar(&counterparty, "counterparty", "", "the other party of the dispute")
	fs.StringVar(&reason, "reason", "", "free-text reason")
	fs.StringVar(&fee, "fee", "", "dispute fee in base units")
	fs.Uint64Var(&jobID, "job", 0, "optional disputed job id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, err := requireAddress("counterparty", counterparty)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(reason) == "" {
		return printError(stderr, "--reason is required")
	}
	normalized, err := normalizeAmount("fee", fee)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"counterparty": addr,
		"reason":       reason,
		"fee":          normalized,
	}
	if jobID != 0 {
		params["jobId"] = jobID
	}
	return invoke(stdout, stderr, "dao_createDispute", params, true)
}

func runDAOVote(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("dao vote", stderr, daoUsage)
	var id uint64
	var side string
	fs.Uint64Var(&id, "id", 0, "dispute id")
	fs.StringVar(&side, "side", "", "client or freelancer")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	normalized := strings.ToLower(strings.TrimSpace(side))
	switch normalized {
	case "client", "freelancer":
	case "1":
		normalized = "client"
	case "2":
		normalized = "freelancer"
	default:
		return printError(stderr, "--side must be client or freelancer")
	}
	return invoke(stdout, stderr, "dao_voteOnDispute", map[string]interface{}{
		"disputeId": id,
		"side":      normalized,
	}, true)
}

func runDAODispute(name, method string, requireAuth bool, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, daoUsage)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "dispute id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	return invoke(stdout, stderr, method, map[string]interface{}{"disputeId": id}, requireAuth)
}

func runDAOList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("dao list", stderr, daoUsage)
	var offset uint64
	var limit int
	fs.Uint64Var(&offset, "offset", 0, "number of disputes to skip")
	fs.IntVar(&limit, "limit", 50, "maximum number of disputes")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if limit <= 0 {
		return printError(stderr, "--limit must be positive")
	}
	return invoke(stdout, stderr, "dao_listDisputes", map[string]interface{}{
		"offset": offset,
		"limit":  limit,
	}, false)
}
