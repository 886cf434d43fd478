package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/vipclub/internal/client/client"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Dashboard(ctx context.Context) error
	Barcode(ctx context.Context, dir string) error
	BarcodeURL(ctx context.Context) error
	FetchBarcode(ctx context.Context, dir string) error
}

// runREPL reads commands line by line and dispatches them to a until EOF,
// "exit"/"quit" or ctx cancellation. Command errors are reported and the
// loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		printlnFn(fmt.Sprintf("vip %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: dashboard, barcode [dir], link, fetch [dir], logout, exit")
			} else {
				printlnFn("Available commands: register, signup, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)
		case "signup":
			cmdErr = a.Signup(ctx)
		case "login":
			cmdErr = a.Login(ctx)

		case "logout", "dashboard", "barcode", "link", "fetch":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			switch cmd {
			case "logout":
				cmdErr = a.Logout(ctx)
			case "dashboard":
				cmdErr = a.Dashboard(ctx)
			case "barcode":
				cmdErr = a.Barcode(ctx, dir)
			case "link":
				cmdErr = a.BarcodeURL(ctx)
			case "fetch":
				cmdErr = a.FetchBarcode(ctx, dir)
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", describe(cmdErr))
		}
	}
}

// describe turns client errors into short user-facing text.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return "not authorized, please login again"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	case errors.Is(err, client.ErrNotLoggedIn):
		return "please login first"
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	default:
		return err.Error()
	}
}
