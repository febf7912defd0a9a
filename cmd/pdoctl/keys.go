package main

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/internal/keys"
)

func (c *cli) keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Manage the trusted keyring file"}
	cmd.AddCommand(c.keysAddCmd())
	cmd.AddCommand(c.keysListCmd())
	return cmd
}

func (c *cli) keysAddCmd() *cobra.Command {
	var entry keys.KeyringEntry
	var publicFrom string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a trusted key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.keyringPath()
			if err != nil {
				return err
			}
			if publicFrom != "" {
				_, pub, err := crypto.LoadEd25519PrivateKey(publicFrom)
				if err != nil {
					return err
				}
				entry.Material = keys.EncodeMaterial(pub)
				entry.Algorithm = string(keys.AlgEd25519)
			}

			kr, err := keys.ReadKeyring(path)
			if err != nil {
				return err
			}
			kr.Upsert(entry)
			if _, err := kr.Records(filepath.Dir(path)); err != nil {
				return err
			}
			if err := keys.WriteKeyring(path, kr); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "key added: key_id=%s keyring=%s\n", entry.KeyID, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&entry.KeyID, "key-id", "", "key identifier")
	cmd.Flags().StringVar(&entry.Algorithm, "alg", string(keys.AlgEd25519), "ED25519 or HMAC-SHA256")
	cmd.Flags().StringVar(&entry.Material, "material", "", "key material (base64:, hex: or bare base64)")
	cmd.Flags().StringVar(&entry.MaterialPath, "material-file", "", "file holding the key material")
	cmd.Flags().StringVar(&entry.AgentID, "agent-id", "", "agent the key is bound to")
	cmd.Flags().StringVar(&publicFrom, "public-from", "", "derive an ED25519 public key from this private key file")
	return cmd
}

func (c *cli) keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys in the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.keyringPath()
			if err != nil {
				return err
			}
			kr, err := keys.ReadKeyring(path)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(kr.Keys)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(c.stdout)
			tw.AppendHeader(table.Row{"Key ID", "Algorithm", "Agent", "Source"})
			for _, e := range kr.Keys {
				source := "inline"
				if e.MaterialPath != "" {
					source = e.MaterialPath
				}
				tw.AppendRow(table.Row{e.KeyID, e.Algorithm, e.AgentID, source})
			}
			tw.Render()
			return nil
		},
	}
}
