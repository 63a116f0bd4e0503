package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/abcfe/voterkey/app"
	"github.com/abcfe/voterkey/common/crypto"
	"github.com/abcfe/voterkey/common/utils"
	prt "github.com/abcfe/voterkey/protocol"
	"github.com/abcfe/voterkey/wallet"
	"github.com/spf13/cobra"
)

// Version info (Injected from Makefile)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configFile   string
	debug        bool
	printMetrics bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "voterkey",
		Short:   "Voter wallet key manager",
		Long:    `Generates, seals, validates and backs up the secp256k1 key pair that identifies a voter.`,
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}

	// Register global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log to console at debug level")
	rootCmd.PersistentFlags().BoolVar(&printMetrics, "metrics", false, "Print operation counters after the command")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(fingerprintCmd())
	rootCmd.AddCommand(wipeCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Failed to execute command:", err)
		os.Exit(1)
	}
}

// run opens the application, hands its wallet to fn and tears down.
func run(fn func(km *wallet.KeyManager) error) {
	runApp(func(a *app.App) error { return fn(a.Wallet) })
}

func runApp(fn func(a *app.App) error) {
	application, err := app.New(configFile, debug)
	if err != nil {
		fmt.Println("Failed to initialize application:", err)
		os.Exit(1)
	}

	err = fn(application)
	if printMetrics {
		fmt.Println("")
		fmt.Println("=== Metrics ===")
		if mErr := application.Wallet.Metrics().WriteText(os.Stdout); mErr != nil {
			fmt.Println("Failed to print metrics:", mErr)
		}
	}
	application.Terminate()

	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store a new voter key pair",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				if km.HasStoredKeyPair() && !force {
					fmt.Println("A key pair is already stored.")
					fmt.Println("Use 'wipe --yes' first, or pass --force to replace it.")
					return nil
				}
				if force {
					if err := km.ClearStoredKeys(); err != nil {
						return err
					}
				}

				address, method, err := km.CreateWallet()
				if err != nil {
					return err
				}
				fmt.Println("=== Voter Key Pair Created ===")
				fmt.Printf("Address: %s\n", address)
				fmt.Printf("Method:  %s\n", method)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Wipe any stored key pair before generating")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored public key, address and metadata",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				if !km.HasStoredKeyPair() {
					fmt.Println("No key pair stored.")
					return nil
				}
				addr, err := km.GetVoterAddress()
				if err != nil {
					return err
				}
				pub, err := km.GetPublicKey()
				if err != nil {
					return err
				}
				meta, err := km.Metadata()
				if err != nil {
					return err
				}
				fmt.Printf("Address:      %s\n", addr)
				fmt.Printf("Public key:   %s\n", pub)
				fmt.Printf("Method:       %s\n", meta.GenerationMethod)
				fmt.Printf("Created:      %d\n", meta.CreationTime)
				fmt.Printf("Last access:  %d\n", meta.LastAccessTime)
				fmt.Printf("Access count: %d\n", meta.AccessCount)
				fmt.Printf("Key version:  %d\n", meta.KeyVersion)
				return nil
			})
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored key pair with a sign/recover round trip",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				report, err := km.ValidationReport()
				if err != nil {
					return err
				}
				fmt.Printf("Public key matches: %v\n", report.PublicKeyMatches)
				fmt.Printf("Address matches:    %v\n", report.AddressMatches)
				fmt.Printf("Signature recovers: %v\n", report.SignatureRecovers)
				if !report.Valid() {
					return wallet.ErrValidationFailed
				}
				fmt.Println("Key pair is valid.")
				return nil
			})
		},
	}
}

func signCmd() *cobra.Command {
	var hashHex, message string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a 32-byte hash (or the Keccak-256 of a message) with the stored key",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				hash, err := parseHash(hashHex, message)
				if err != nil {
					return err
				}

				sig, err := km.SignHash(hash)
				if err != nil {
					return err
				}
				fmt.Printf("Hash:      %s\n", utils.BytesTo0xHex(hash[:]))
				fmt.Printf("Signature: %s\n", utils.SignatureToString(sig))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hashHex, "hash", "", "0x-prefixed 32-byte hash")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to hash with Keccak-256")
	return cmd
}

func parseHash(hashHex, message string) (prt.Hash, error) {
	var hash prt.Hash
	switch {
	case hashHex != "":
		b, err := utils.HexToBytes(hashHex)
		if err != nil {
			return hash, err
		}
		if len(b) != len(hash) {
			return hash, fmt.Errorf("hash must be %d bytes, got %d", len(hash), len(b))
		}
		copy(hash[:], b)
	case message != "":
		hash = crypto.Keccak256([]byte(message))
	default:
		return hash, fmt.Errorf("provide --hash or --message")
	}
	return hash, nil
}

func verifyCmd() *cobra.Command {
	var hashHex, message, sigHex string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a signature recovers to the stored public key",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				hash, err := parseHash(hashHex, message)
				if err != nil {
					return err
				}
				sig, err := utils.StringToSignature(sigHex)
				if err != nil {
					return err
				}
				pubHex, err := km.GetPublicKey()
				if err != nil {
					return err
				}
				pub, err := utils.StringToPublicKey(pubHex)
				if err != nil {
					return err
				}
				if !crypto.VerifySignature(pub, hash, sig) {
					return fmt.Errorf("signature does not match the stored key")
				}
				fmt.Println("Signature is valid.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hashHex, "hash", "", "0x-prefixed 32-byte hash")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to hash with Keccak-256")
	cmd.Flags().StringVarP(&sigHex, "signature", "s", "", "0x-prefixed 65-byte R||S||V signature")
	return cmd
}

func exportCmd() *cobra.Command {
	var consent bool
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an encrypted backup bundle",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				bundle, err := km.ExportKeysForBackup(consent)
				if err != nil {
					return err
				}
				words, err := wallet.BackupFingerprint(bundle)
				if err != nil {
					return err
				}
				if out != "" {
					if err := os.WriteFile(out, []byte(bundle+"\n"), 0o600); err != nil {
						return err
					}
					fmt.Printf("Bundle written to: %s\n", out)
				} else {
					fmt.Println(bundle)
				}
				fmt.Println("")
				fmt.Println("Fingerprint (compare after copying):")
				fmt.Println(words)
				fmt.Println("")
				fmt.Println("The bundle can only be restored on a device holding the same encryption key.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&consent, "consent", false, "Confirm that the key pair may leave the secure store")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the bundle to a file instead of stdout")
	return cmd
}

func readBundle(bundle, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	if bundle == "" {
		return "", fmt.Errorf("provide --bundle or --file")
	}
	return bundle, nil
}

func restoreCmd() *cobra.Command {
	var bundle, file string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the key pair from a backup bundle",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(km *wallet.KeyManager) error {
				b, err := readBundle(bundle, file)
				if err != nil {
					return err
				}
				addr, err := km.RestoreFromBackup(b)
				if err != nil {
					return err
				}
				fmt.Println("=== Key Pair Restored ===")
				fmt.Printf("Address: %s\n", addr)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&bundle, "bundle", "b", "", "Backup bundle")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File holding the backup bundle")
	return cmd
}

func fingerprintCmd() *cobra.Command {
	var bundle, file string

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the word fingerprint of a backup bundle",
		Run: func(cmd *cobra.Command, args []string) {
			b, err := readBundle(bundle, file)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			words, err := wallet.BackupFingerprint(b)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println(words)
		},
	}

	cmd.Flags().StringVarP(&bundle, "bundle", "b", "", "Backup bundle")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File holding the backup bundle")
	return cmd
}

func wipeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Irreversibly delete the stored key pair and its wrapping keys",
		Run: func(cmd *cobra.Command, args []string) {
			if !yes {
				fmt.Println("This destroys the voter key pair permanently. Re-run with --yes to confirm.")
				return
			}
			run(func(km *wallet.KeyManager) error {
				if err := km.ClearStoredKeys(); err != nil {
					return err
				}
				fmt.Println("Key pair wiped.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the wipe")
	return cmd
}
