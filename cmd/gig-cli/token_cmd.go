package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"gigchain/core/types"
	"gigchain/rpc"
)

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr, tokenUsage)
	secret := fs.String("secret", os.Getenv("GIG_RPC_JWT_SECRET"), "HS256 signing secret (defaults to GIG_RPC_JWT_SECRET)")
	issuer := fs.String("issuer", "", "issuer claim expected by the node")
	subject := fs.String("subject", "", "caller address carried in the sub claim")
	keystorePath := fs.String("keystore", "", "derive the subject from a keystore file")
	pass := fs.String("passphrase", "", "keystore passphrase")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime, 0 for no expiry")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *secret == "" {
		return printError(stderr, "--secret or GIG_RPC_JWT_SECRET is required")
	}
	var addr types.Address
	if *keystorePath != "" {
		key, err := loadKeystore(*keystorePath, *pass)
		if err != nil {
			return printError(stderr, err.Error())
		}
		addr = key.Address()
	} else {
		raw, err := requireAddress("subject", *subject)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if addr, err = types.ParseAddress(raw); err != nil {
			return printError(stderr, err.Error())
		}
	}
	if addr.IsZero() {
		return printError(stderr, "--subject must not be the zero address")
	}
	token, err := rpc.SignToken(*secret, *issuer, addr, *ttl)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func tokenUsage() string {
	return `Usage:
  gig-cli token (--subject 0x... | --keystore FILE) [--secret S] [--issuer I] [--ttl 1h]`
}
