// Package main provides wanode, a command-line driver for the wacore stack.
//
// Commands:
//
//	keygen     create (or show) the device stored in the configured backend
//	qr         print rotating pairing payloads for the device
//	decode     decode a hex-encoded node buffer and print it as XML
//	loopback   handshake two in-memory peers and exchange a node
//	dial       connect to the configured websocket endpoint and print nodes
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// errUsage marks errors that should be followed by the usage text.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "wanode: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wanode <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands: keygen, qr, decode, loopback, dial")
	fmt.Fprintln(w, "Run 'wanode <command> -h' for the options of a command.")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stdout)
	cli := registerCommonFlags(fs)

	switch cmd {
	case "keygen":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		cfg, err := cli.load()
		if err != nil {
			return err
		}
		return runKeygen(cfg, stdout)

	case "qr":
		codes := fs.Int("codes", 1, "number of codes to rotate through")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		cfg, err := cli.load()
		if err != nil {
			return err
		}
		return runQR(ctx, cfg, *codes, stdout)

	case "decode":
		raw := fs.Bool("raw", false, "input has no leading flags byte")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if _, err := cli.load(); err != nil {
			return err
		}
		input := stdin
		if fs.NArg() > 0 {
			input = strings.NewReader(fs.Arg(0))
		}
		return runDecode(input, *raw, stdout)

	case "loopback":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		cfg, err := cli.load()
		if err != nil {
			return err
		}
		return runLoopback(ctx, cfg, stdout)

	case "dial":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		cfg, err := cli.load()
		if err != nil {
			return err
		}
		return runDial(ctx, cfg, stdout)

	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}
