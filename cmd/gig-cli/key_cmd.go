package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gigchain/cmd/internal/passphrase"
	"gigchain/crypto"
)

const keyPassphraseEnv = "GIG_KEY_PASSPHRASE"

// keyPassphrase is swapped out in tests.
var keyPassphrase = func(flagValue string) (string, error) {
	if flagValue != "" {
		return passphrase.NewStaticSource(flagValue).Get()
	}
	return passphrase.NewSource(keyPassphraseEnv).Get()
}

func runKeyCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, keyUsage())
		return 1
	}

	switch args[0] {
	case "new":
		return runKeyNew(args[1:], stdout, stderr)
	case "show":
		return runKeyShow(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown key subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, keyUsage())
		return 1
	}
}

func keyUsage() string {
	return strings.TrimSpace(`Usage:
  gig-cli key <command> [flags]

Commands:
  new   Generate an identity key into a keystore file (--out, --force, --light)
  show  Print the address held in a keystore file (--keystore)

The passphrase is read from --passphrase, GIG_KEY_PASSPHRASE or the terminal.
`)
}

func runKeyNew(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("key new", stderr, keyUsage)
	var out, pass string
	var force, light bool
	fs.StringVar(&out, "out", "", "keystore file to write")
	fs.StringVar(&pass, "passphrase", "", "keystore passphrase")
	fs.BoolVar(&force, "force", false, "overwrite an existing keystore file")
	fs.BoolVar(&light, "light", false, "use light scrypt parameters (development keys only)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		return printError(stderr, "--out is required")
	}
	if !force {
		if _, err := os.Stat(out); err == nil {
			return printError(stderr, fmt.Sprintf("keystore file %s already exists (use --force to overwrite)", out))
		} else if !errors.Is(err, os.ErrNotExist) {
			return printError(stderr, err.Error())
		}
	}
	secret, err := keyPassphrase(pass)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	save := crypto.SaveToKeystore
	if light {
		save = crypto.SaveToKeystoreLight
	}
	if err := save(out, key, secret); err != nil {
		return printError(stderr, fmt.Sprintf("failed to write keystore: %v", err))
	}
	fmt.Fprintln(stdout, key.Address().Hex())
	return 0
}

func runKeyShow(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("key show", stderr, keyUsage)
	var path, pass string
	fs.StringVar(&path, "keystore", "", "keystore file to read")
	fs.StringVar(&pass, "passphrase", "", "keystore passphrase")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	key, err := loadKeystore(path, pass)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, key.Address().Hex())
	return 0
}

func loadKeystore(path, pass string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--keystore is required")
	}
	secret, err := keyPassphrase(pass)
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}
	return key, nil
}
