package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	exitFn(run(os.Args[1:], os.Stdout, os.Stderr))
}

var exitFn = os.Exit

// errBlocked marks a command that ran cleanly but whose verdict blocks
// execution. It maps to exit code 1 without an error line.
var errBlocked = errors.New("blocked")

func blockedIf(blocked bool) error {
	if blocked {
		return errBlocked
	}
	return nil
}

// cli carries per-invocation state so commands stay testable without
// package globals.
type cli struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if errors.Is(err, errBlocked) {
			return 1
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout io.Writer, stderr io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), stdout: stdout, stderr: stderr}
	c.v.SetEnvPrefix("PDOCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "pdoctl",
		Short:         "Mint, sign and check Proof Decision Outcomes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("keyring", "", "keyring file (YAML)")
	_ = c.v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = c.v.BindPFlag("keyring", root.PersistentFlags().Lookup("keyring"))

	root.AddCommand(c.hashCmd())
	root.AddCommand(c.mintCmd())
	root.AddCommand(c.validateCmd())
	root.AddCommand(c.croCmd())
	root.AddCommand(c.keysCmd())
	return root
}

func (c *cli) jsonOutput() bool {
	return c.v.GetBool("json")
}

func (c *cli) keyringPath() (string, error) {
	path := c.v.GetString("keyring")
	if path == "" {
		return "", errors.New("--keyring (or PDOCTL_KEYRING) is required")
	}
	return path, nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (c *cli) verdict(allowed bool, label string) {
	if allowed {
		color.New(color.FgGreen, color.Bold).Fprintf(c.stdout, "%s\n", label)
		return
	}
	color.New(color.FgRed, color.Bold).Fprintf(c.stdout, "%s\n", label)
}
