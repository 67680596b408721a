package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/cryptoguard/cryptoguard"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a node attester key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "privatekey: %s\n", hexutil.Encode(crypto.FromECDSA(key)))
		fmt.Fprintf(cmd.OutOrStdout(), "attester:   %s\n", cryptoguard.PubkeyToAddr(&key.PublicKey))
		return nil
	},
}
