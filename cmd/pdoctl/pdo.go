package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/davidahmann/pdogate/internal/cro"
	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/internal/enforce"
	"github.com/davidahmann/pdogate/internal/keys"
	"github.com/davidahmann/pdogate/internal/pdo"
	"github.com/davidahmann/pdogate/internal/signature"
	"github.com/davidahmann/pdogate/pkg/types"
)

type hashFlags struct {
	inputsHash    string
	inputsFile    string
	policyVersion string
	outcome       string
}

func (f *hashFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inputsHash, "inputs-hash", "", "hex SHA-256 of the decision inputs")
	cmd.Flags().StringVar(&f.inputsFile, "inputs-file", "", "JSON or YAML inputs to hash canonically")
	cmd.Flags().StringVar(&f.policyVersion, "policy-version", "", "policy version, e.g. settlement_policy@v1.0.0")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "APPROVED, REJECTED or PENDING")
}

func (f *hashFlags) resolve() (string, pdo.Outcome, error) {
	outcome, ok := pdo.ParseOutcome(f.outcome)
	if !ok {
		return "", "", fmt.Errorf("--outcome must be APPROVED, REJECTED or PENDING")
	}
	if f.policyVersion == "" {
		return "", "", errors.New("--policy-version is required")
	}
	switch {
	case f.inputsHash != "" && f.inputsFile != "":
		return "", "", errors.New("set --inputs-hash or --inputs-file, not both")
	case f.inputsFile != "":
		inputs, err := readDocument(f.inputsFile)
		if err != nil {
			return "", "", err
		}
		h, err := pdo.HashInputs(inputs)
		if err != nil {
			return "", "", fmt.Errorf("hash inputs: %w", err)
		}
		return h, outcome, nil
	case f.inputsHash != "":
		return f.inputsHash, outcome, nil
	default:
		return "", "", errors.New("--inputs-hash or --inputs-file is required")
	}
}

func (c *cli) hashCmd() *cobra.Command {
	var f hashFlags
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute the decision_hash for inputs, policy version and outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputsHash, outcome, err := f.resolve()
			if err != nil {
				return err
			}
			decisionHash := pdo.ComputeDecisionHash(inputsHash, f.policyVersion, string(outcome))
			if c.jsonOutput() {
				return c.printJSON(map[string]string{"inputs_hash": inputsHash, "decision_hash": decisionHash})
			}
			fmt.Fprintln(c.stdout, decisionHash)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) mintCmd() *cobra.Command {
	var (
		f         hashFlags
		signer    string
		agentID   string
		action    string
		nonce     string
		withNonce bool
		ttl       time.Duration
		keyFile   string
		keyID     string
		alg       string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a PDO, optionally signing it with a local key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputsHash, outcome, err := f.resolve()
			if err != nil {
				return err
			}
			if withNonce && nonce == "" {
				nonce = pdo.NewNonce()
			}
			w, err := pdo.Mint(pdo.MintInput{
				InputsHash:    inputsHash,
				PolicyVersion: f.policyVersion,
				Outcome:       outcome,
				Signer:        signer,
				AgentID:       agentID,
				Action:        action,
				Nonce:         nonce,
				TTL:           ttl,
			})
			if err != nil {
				return err
			}
			if keyFile != "" {
				s, err := loadSigner(keyFile, keyID, alg)
				if err != nil {
					return err
				}
				if err := signature.SignPDO(&w, s); err != nil {
					return fmt.Errorf("sign: %w", err)
				}
			}
			if outPath == "" {
				return c.printJSON(w)
			}
			if err := writeJSONFile(outPath, w); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "minted pdo_id=%s path=%s\n", w.PDOID, outPath)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&signer, "signer", "", "signer as type::id, e.g. agent::settlement-bot")
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent the PDO authorizes")
	cmd.Flags().StringVar(&action, "action", "", "governed action")
	cmd.Flags().StringVar(&nonce, "nonce", "", "single-use nonce")
	cmd.Flags().BoolVar(&withNonce, "with-nonce", false, "generate a nonce when --nonce is empty")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime; sets expires_at when positive")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "private key (ED25519) or secret (HMAC-SHA256) to sign with")
	cmd.Flags().StringVar(&keyID, "key-id", "", "key_id to place in the signature envelope")
	cmd.Flags().StringVar(&alg, "alg", string(keys.AlgEd25519), "ED25519 or HMAC-SHA256")
	cmd.Flags().StringVar(&outPath, "out", "", "write the PDO to this file instead of stdout")
	return cmd
}

func loadSigner(keyFile, keyID, alg string) (signature.Signer, error) {
	if keyID == "" {
		return nil, errors.New("--key-id is required with --key-file")
	}
	algorithm, ok := keys.ParseAlgorithm(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %s", keys.ErrUnsupportedAlgorithm, alg)
	}
	switch algorithm {
	case keys.AlgEd25519:
		priv, _, err := crypto.LoadEd25519PrivateKey(keyFile)
		if err != nil {
			return nil, err
		}
		return signature.NewEd25519Signer(keyID, priv), nil
	case keys.AlgHMACSHA256:
		secret, err := crypto.LoadKeyMaterial(keyFile)
		if err != nil {
			return nil, err
		}
		return signature.NewHMACSigner(keyID, secret), nil
	default:
		return nil, fmt.Errorf("%w: %s", keys.ErrUnsupportedAlgorithm, alg)
	}
}

func (c *cli) validateCmd() *cobra.Command {
	var (
		withSignature bool
		withCRO       bool
		riskFile      string
		binding       string
		requireNonce  bool
	)
	cmd := &cobra.Command{
		Use:   "validate <pdo.json>",
		Short: "Run the enforcement pipeline against a PDO file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			raw, err := pdo.Decode(data)
			if err != nil {
				return fmt.Errorf("parse pdo: %w", err)
			}

			b, err := signature.ParseBinding(binding)
			if err != nil {
				return err
			}
			registry := keys.NewInMemoryRegistry()
			if path := c.v.GetString("keyring"); path != "" {
				if _, err := keys.LoadKeyring(path, registry); err != nil {
					return fmt.Errorf("load keyring: %w", err)
				}
			} else if withSignature {
				return errors.New("--signature needs --keyring (or PDOCTL_KEYRING)")
			}
			svc := enforce.NewService(enforce.Options{
				Registry:  registry,
				Signature: signature.Config{RequireNonce: requireNonce, Binding: b},
			})

			var res enforce.ValidationResult
			switch {
			case riskFile != "":
				meta, err := cro.LoadMetadata(riskFile)
				if err != nil {
					return err
				}
				res = svc.ValidateWithRisk(raw, &meta, withSignature)
			case withSignature && withCRO:
				res = svc.ValidateWithSignatureAndCRO(raw)
			case withSignature:
				res = svc.ValidateWithSignature(raw)
			case withCRO:
				res = svc.ValidateWithCRO(raw)
			default:
				res = svc.Validate(raw)
			}
			return c.reportValidation(res)
		},
	}
	cmd.Flags().BoolVar(&withSignature, "signature", false, "verify the signature against the keyring")
	cmd.Flags().BoolVar(&withCRO, "cro", false, "enforce the recorded CRO decision")
	cmd.Flags().StringVar(&riskFile, "risk", "", "evaluate this risk metadata file instead of the recorded CRO decision")
	cmd.Flags().StringVar(&binding, "binding", string(signature.BindingStrict), "signer binding: strict, required or disabled")
	cmd.Flags().BoolVar(&requireNonce, "require-nonce", false, "treat a missing nonce as a replay")
	return cmd
}

func (c *cli) reportValidation(res enforce.ValidationResult) error {
	if c.jsonOutput() {
		if err := c.printJSON(res); err != nil {
			return err
		}
	} else {
		if res.AllowsExecution() {
			c.verdict(true, "ALLOWED pdo_id="+res.PDOID)
		} else {
			c.verdict(false, "BLOCKED pdo_id="+res.PDOID)
			renderErrors(c, res.Errors)
		}
		if res.CROResult != nil {
			fmt.Fprintf(c.stdout, "cro_decision=%s\n", res.CROResult.Decision)
		}
	}
	return blockedIf(!res.AllowsExecution())
}

func renderErrors(c *cli, errs []types.ValidationError) {
	tw := table.NewWriter()
	tw.SetOutputMirror(c.stdout)
	tw.AppendHeader(table.Row{"Code", "Field", "Message"})
	for _, e := range errs {
		tw.AppendRow(table.Row{e.Code, e.Field, e.Message})
	}
	tw.Render()
}
