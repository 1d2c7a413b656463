// authctl is a command-line client for the auth server. Tokens are kept in an
// encrypted file; set AUTHCTL_PASSPHRASE to unlock it.
//
//	authctl [-server URL] [-store PATH] [-device NAME] <command> [flags]
//
// Commands: register, login, refresh, logout, status, sessions, get PATH.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dsqrwym/Maian-sub000/internal/client/authclient"
	"github.com/dsqrwym/Maian-sub000/internal/client/authstate"
	"github.com/dsqrwym/Maian-sub000/internal/client/tokenstore"
)

const defaultServer = "http://localhost:8080"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	server := fs.String("server", envOr("AUTHCTL_SERVER", defaultServer), "auth server base URL")
	storePath := fs.String("store", envOr("AUTHCTL_STORE", defaultStorePath()), "encrypted token file")
	device := fs.String("device", envOr("AUTHCTL_DEVICE", hostname()), "device name sent at login")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	passphrase := os.Getenv("AUTHCTL_PASSPHRASE")
	if passphrase == "" {
		return errors.New("AUTHCTL_PASSPHRASE is not set")
	}
	store, err := tokenstore.OpenFile(*storePath, passphrase)
	if err != nil {
		return err
	}
	machine := authstate.FromStorage(store)
	client, err := authclient.New(authclient.Config{
		BaseURL:    *server,
		DeviceName: *device,
		UserAgent:  "authctl/1",
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}, store, machine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	err = dispatch(ctx, client, cmd, rest)
	reportEvent(machine)
	return explain(err, *server, store.Path())
}

// explain adds a hint to errors that never reached an authorization verdict;
// the stored tokens are untouched in that case.
func explain(err error, server, storePath string) error {
	if err == nil || !authclient.IsTransport(err) {
		return err
	}
	return fmt.Errorf("%w (could not reach %s; tokens in %s were kept)", err, server, storePath)
}

func dispatch(ctx context.Context, c *authclient.Client, cmd string, args []string) error {
	switch cmd {
	case "register":
		fs := flag.NewFlagSet("register", flag.ContinueOnError)
		creds := credentialFlags(fs)
		name := fs.String("name", "", "display name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		id, err := c.Register(ctx, *creds, *name)
		if err != nil {
			return err
		}
		fmt.Println("registered user", id)
		return nil

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		creds := credentialFlags(fs)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := c.Login(ctx, *creds); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil

	case "refresh":
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		fmt.Println("tokens refreshed")
		return nil

	case "logout":
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "status":
		me, err := c.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(me)

	case "sessions":
		list, err := c.Sessions(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)

	case "get":
		if len(args) != 1 {
			return errors.New("usage: authctl get PATH")
		}
		status, body, err := c.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("HTTP %d\n%s\n", status, body)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func credentialFlags(fs *flag.FlagSet) *authclient.Credentials {
	creds := &authclient.Credentials{}
	fs.StringVar(&creds.Email, "email", "", "account email")
	fs.StringVar(&creds.Username, "username", "", "account username")
	fs.StringVar(&creds.Password, "password", os.Getenv("AUTHCTL_PASSWORD"), "password (or AUTHCTL_PASSWORD)")
	return creds
}

// reportEvent prints a forced logout that happened during the command.
func reportEvent(m *authstate.Machine) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if ev, err := m.Next(ctx); err == nil {
		fmt.Fprintf(os.Stderr, "authctl: session ended (%s); run authctl login\n", ev)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "authctl"
	}
	return h
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "authctl", "tokens")
}
