package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abcfe/voterkey/app"
	prt "github.com/abcfe/voterkey/protocol"
	"github.com/abcfe/voterkey/storage"
	"github.com/spf13/cobra"
)

// Fields whose values are safe to print. Everything else is shown by length.
var printable = map[string]bool{
	prt.KeyPublicKey:        true,
	prt.KeyVoterAddress:     true,
	prt.KeyCreationTime:     true,
	prt.KeyGenerationMethod: true,
	prt.KeyMetadata:         true,
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List the raw fields held in the key store",
		Run: func(cmd *cobra.Command, args []string) {
			runApp(func(a *app.App) error {
				fmt.Printf("Store opened: %s\n\n", a.Conf.Store.Path)
				showWalletFields(a.DB)
				return showCustodianEntries(a.DB)
			})
		},
	}
}

func showWalletFields(db *storage.DB) {
	fmt.Println("=== WALLET FIELDS ===")
	for _, k := range prt.AllKeys {
		v, err := db.Get([]byte(k))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fmt.Printf("%-24s missing\n", k)
		case err != nil:
			fmt.Printf("%-24s error: %v\n", k, err)
		case printable[k]:
			fmt.Printf("%-24s %s\n", k, string(v))
		default:
			fmt.Printf("%-24s <%d bytes>\n", k, len(v))
		}
	}
	fmt.Println()
}

func showCustodianEntries(db *storage.DB) error {
	fmt.Println("=== SEALED WRAPPING KEYS ===")
	count := 0
	err := db.Iterate([]byte(prt.PrefixCustodianKey), func(k, v []byte) bool {
		alias := strings.TrimPrefix(string(k), prt.PrefixCustodianKey)
		fmt.Printf("%-24s <%d bytes>\n", alias, len(v))
		count++
		return true
	})
	if count == 0 {
		fmt.Println("none (in-memory or hardware custodian)")
	}
	fmt.Println()
	return err
}
