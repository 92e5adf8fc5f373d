package main

import (
	"fmt"
	"io"
	"strings"
)

func runJobCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, jobUsage())
		return 1
	}

	switch args[0] {
	case "create":
		return runJobCreate(args[1:], stdout, stderr)
	case "fund":
		return runJobFund(args[1:], stdout, stderr)
	case "deliver":
		return runJobDeliver(args[1:], stdout, stderr)
	case "confirm":
		return runJobAction("job confirm", "escrow_confirmDelivery", args[1:], stdout, stderr)
	case "dispute":
		return runJobAction("job dispute", "escrow_dispute", args[1:], stdout, stderr)
	case "refund":
		return runJobAction("job refund", "escrow_refund", args[1:], stdout, stderr)
	case "release":
		return runJobAction("job release", "escrow_release", args[1:], stdout, stderr)
	case "get":
		return runJobGet(args[1:], stdout, stderr)
	case "list":
		return runJobList(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown job subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, jobUsage())
		return 1
	}
}

func jobUsage() string {
	return strings.TrimSpace(`Usage:
  gig-cli job <command> [flags]

Commands:
  create   Open a job for a freelancer (--freelancer, --amount)
  fund     Deposit the job amount (--id, --amount)
  deliver  Submit a delivery reference as the freelancer (--id, --ref)
  confirm  Confirm delivery and pay the freelancer (--id)
  dispute  Flag a delivered job as disputed (--id)
  refund   Resolver only: return the held amount to the client (--id)
  release  Resolver only: pay the held amount to the freelancer (--id)
  get      Fetch a job (--id)
  list     List jobs (--offset, --limit)
`)
}

func runJobCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("job create", stderr, jobUsage)
	var freelancer, amount string
	fs.StringVar(&freelancer, "freelancer", "", "freelancer address")
	fs.StringVar(&amount, "amount", "", "job amount in base units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, err := requireAddress("freelancer", freelancer)
	if err != nil {
		return printError(stderr, err.Error())
	}
	normalized, err := normalizeAmount("amount", amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "escrow_createJob", map[string]interface{}{
		"freelancer": addr,
		"amount":     normalized,
	}, true)
}

func runJobFund(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("job fund", stderr, jobUsage)
	var id uint64
	var amount string
	fs.Uint64Var(&id, "id", 0, "job id")
	fs.StringVar(&amount, "amount", "", "amount to deposit, must equal the job amount")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	normalized, err := normalizeAmount("amount", amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "escrow_fundJob", map[string]interface{}{
		"jobId":  id,
		"amount": normalized,
	}, true)
}

func runJobDeliver(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("job deliver", stderr, jobUsage)
	var id uint64
	var ref string
	fs.Uint64Var(&id, "id", 0, "job id")
	fs.StringVar(&ref, "ref", "", "content reference of the delivery")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	return invoke(stdout, stderr, "escrow_submitDelivery", map[string]interface{}{
		"jobId":      id,
		"contentRef": ref,
	}, true)
}

func runJobAction(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, jobUsage)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "job id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	return invoke(stdout, stderr, method, map[string]interface{}{"jobId": id}, true)
}

func runJobGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("job get", stderr, jobUsage)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "job id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	return invoke(stdout, stderr, "escrow_getJob", map[string]interface{}{"jobId": id}, false)
}

func runJobList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("job list", stderr, jobUsage)
	var offset uint64
	var limit int
	fs.Uint64Var(&offset, "offset", 0, "number of jobs to skip")
	fs.IntVar(&limit, "limit", 50, "maximum number of jobs")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if limit <= 0 {
		return printError(stderr, "--limit must be positive")
	}
	return invoke(stdout, stderr, "escrow_listJobs", map[string]interface{}{
		"offset": offset,
		"limit":  limit,
	}, false)
}
