package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/yourusername/btcverifier/internal/client"
	"github.com/yourusername/btcverifier/internal/config"
	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/logging"
	"github.com/yourusername/btcverifier/internal/storage"
)

var logger = logging.New(false)

func main() {
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	nonceCmd := flag.NewFlagSet("nonce", flag.ExitOnError)
	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)

	importKey := importCmd.String("key", "", "Hex private key to import")
	showAddress := showCmd.String("address", "", "Address of the wallet")
	showKey := showCmd.Bool("private-key", false, "Also print the private key")
	nonceAddress := nonceCmd.String("address", "", "Address to query")
	nonceRPC := nonceCmd.String("rpc", "", "Node endpoint (default: $VERIFIER_RPC_URL or $ARB_URL)")
	deleteAddress := deleteCmd.String("address", "", "Address of the wallet")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		createWallet()

	case "import":
		importCmd.Parse(os.Args[2:])
		requireFlag(importCmd, *importKey, "key")
		importWallet(*importKey)

	case "list":
		listCmd.Parse(os.Args[2:])
		listWallets()

	case "show":
		showCmd.Parse(os.Args[2:])
		requireFlag(showCmd, *showAddress, "address")
		showWallet(*showAddress, *showKey)

	case "nonce":
		nonceCmd.Parse(os.Args[2:])
		requireFlag(nonceCmd, *nonceAddress, "address")
		printNonce(*nonceAddress, *nonceRPC)

	case "delete":
		deleteCmd.Parse(os.Args[2:])
		requireFlag(deleteCmd, *deleteAddress, "address")
		deleteWallet(*deleteAddress)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Verifier submitter wallet")
	fmt.Println("\nUsage:")
	fmt.Println("  wallet create                              Create a new wallet")
	fmt.Println("  wallet import --key <hex>                  Import a private key")
	fmt.Println("  wallet list                                List all wallets")
	fmt.Println("  wallet show --address <addr> [--private-key]")
	fmt.Println("  wallet nonce --address <addr> [--rpc <url>]")
	fmt.Println("  wallet delete --address <addr>")
}

func requireFlag(fs *flag.FlagSet, value, name string) {
	if value != "" {
		return
	}
	fmt.Printf("Error: --%s is required\n", name)
	fs.PrintDefaults()
	os.Exit(1)
}

func openStore() *storage.WalletStorage {
	walletStore, err := storage.NewWalletStorage(storage.GetWalletPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open wallet storage")
	}
	return walletStore
}

func saveWallet(wallet *crypto.Wallet) {
	walletStore := openStore()
	defer walletStore.Close()

	if err := walletStore.SaveWallet(wallet); err != nil {
		logger.Fatal().Err(err).Msg("failed to save wallet")
	}

	fmt.Println("==========================================")
	fmt.Printf("Address:     %s\n", wallet.GetAddress())
	fmt.Printf("Private Key: %s\n", wallet.PrivateKeyHex())
	fmt.Println("==========================================")
	fmt.Println("\nExport the key as PRIVATE_KEY to sign submissions.")
	fmt.Printf("Wallet saved to: %s\n", storage.GetWalletPath())
}

func createWallet() {
	wallet, err := crypto.NewWallet()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create wallet")
	}

	fmt.Println("\nNew Wallet Created")
	saveWallet(wallet)
}

func importWallet(key string) {
	wallet, err := crypto.WalletFromHex(key)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid private key")
	}

	fmt.Println("\nWallet Imported")
	saveWallet(wallet)
}

func listWallets() {
	walletStore := openStore()
	defer walletStore.Close()

	wallets, err := walletStore.ListWallets()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get wallets")
	}

	if len(wallets) == 0 {
		fmt.Println("\nNo wallets found. Create one with: wallet create")
		return
	}

	fmt.Printf("\nSaved Wallets (%d):\n", len(wallets))
	fmt.Println("==========================================")
	for i, w := range wallets {
		fmt.Printf("%d. %s  (created %s)\n", i+1, w.Address, humanize.Time(w.CreatedAt))
	}
	fmt.Println("==========================================")
}

func showWallet(address string, withKey bool) {
	if err := crypto.ValidateAddress(address); err != nil {
		logger.Fatal().Err(err).Msg("invalid address")
	}

	walletStore := openStore()
	defer walletStore.Close()

	wallet, err := walletStore.GetWallet(address)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load wallet")
	}

	fmt.Printf("\nAddress:    %s\n", wallet.GetAddress())
	fmt.Printf("Public Key: %s\n", crypto.EncodeHex(wallet.PublicKey))
	if withKey {
		fmt.Printf("Private Key: %s\n", wallet.PrivateKeyHex())
	}
}

func printNonce(address, rpcURL string) {
	if err := crypto.ValidateAddress(address); err != nil {
		logger.Fatal().Err(err).Msg("invalid address")
	}

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if rpcURL == "" {
		rpcURL = cfg.Client.RPCURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, rpcURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer c.Close()

	nonce, err := c.Nonce(ctx, address)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get nonce")
	}

	fmt.Printf("\nAddress: %s\n", address)
	fmt.Printf("Next nonce: %d\n", nonce)
}

func deleteWallet(address string) {
	walletStore := openStore()
	defer walletStore.Close()

	if err := walletStore.DeleteWallet(address); err != nil {
		logger.Fatal().Err(err).Msg("failed to delete wallet")
	}
	fmt.Printf("Deleted wallet %s\n", address)
}
