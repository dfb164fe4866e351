// Package main implements taskctl, the command-line client for taskd.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskd/pkg/client"
)

const defaultServerURL = "http://localhost:5000"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the global flags and the lazily opened session and client.
type app struct {
	serverURL   string
	sessionPath string
	jsonOutput  bool
	timeout     time.Duration

	session *fileSession
	client  *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "taskctl",
		Short: "Command-line client for the taskd task list API",
		Long: `taskctl manages your tasks on a taskd server.

The session token, the remembered login email and the server URL are kept
in ~/.config/taskd/session.toml (readable only by you).

Examples:
  # Log in, creating the account if it does not exist
  taskctl login me@example.com --create --remember

  # Add and list tasks
  taskctl add "Buy milk" --priority high
  taskctl list --sort priority

  # Use a server mounted under /api
  taskctl --server http://localhost:5000/api health`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "taskd server URL including any base path (default: remembered server, $TASKD_URL or "+defaultServerURL+")")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", "", "session file (default: ~/.config/taskd/session.toml)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print raw JSON responses")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.refreshCmd(),
		a.healthCmd(),
		a.listCmd(),
		a.getCmd(),
		a.addCmd(),
		a.editCmd(),
		a.doneCmd(true),
		a.doneCmd(false),
		a.rmCmd(),
	)
	return root
}

// open loads the session and builds the client. The server URL comes from
// --server, then $TASKD_URL, then the session, then the default.
func (a *app) open(cmd *cobra.Command) error {
	path := a.sessionPath
	if path == "" {
		var err error
		if path, err = defaultSessionPath(); err != nil {
			return err
		}
	}
	sess, err := loadSession(path)
	if err != nil {
		return err
	}
	a.session = sess

	server := a.serverURL
	if server == "" {
		server = os.Getenv("TASKD_URL")
	}
	if server == "" {
		server = sess.snapshot().Server
	}
	if server == "" {
		server = defaultServerURL
	}

	c, err := client.New(server, client.WithTokenStore(sess))
	if err != nil {
		return err
	}
	a.client = c

	// A URL given explicitly becomes the remembered one.
	if a.serverURL != "" && a.serverURL != sess.snapshot().Server {
		if err := sess.update(func(d *sessionData) { d.Server = a.serverURL }); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// printJSON writes v as indented JSON when --json is set and reports
// whether it did.
func (a *app) printJSON(w io.Writer, v any) (bool, error) {
	if !a.jsonOutput {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
