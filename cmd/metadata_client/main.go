package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/indexer-metadata-gateway/api/metadatahandler"
	"github.com/ruteri/indexer-metadata-gateway/api/statushandler"
	"github.com/ruteri/indexer-metadata-gateway/cmd/flags"
	"github.com/ruteri/indexer-metadata-gateway/cryptoutils"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/ruteri/indexer-metadata-gateway/keyregistry"
	"github.com/urfave/cli/v2"
)

var flagSignerID = &cli.StringFlag{
	Name:     "signer",
	Required: true,
	Usage:    "signer id registered with the gateway",
	EnvVars:  []string{"METADATA_SIGNER"},
}
var flagAlgorithm = &cli.StringFlag{
	Name:    "algorithm",
	Value:   string(interfaces.Secp256k1),
	Usage:   "signature algorithm: secp256k1, ed25519 or p256",
	EnvVars: []string{"METADATA_SIGNER_ALGORITHM"},
}
var flagKey = &cli.StringFlag{
	Name:    "key",
	Usage:   "private key (hex for secp256k1 and ed25519, PEM for p256)",
	EnvVars: []string{"METADATA_SIGNER_KEY"},
}
var flagKeyFile = &cli.StringFlag{
	Name:  "key-file",
	Usage: "read the private key from this file instead of --key",
}
var flagTable = &cli.StringFlag{
	Name:     "table",
	Required: true,
	Usage:    "metadata table: Software or Protocols",
}
var flagTables = &cli.StringSliceFlag{
	Name:  "tables",
	Value: cli.NewStringSlice(string(interfaces.SoftwareTable), string(interfaces.ProtocolsTable)),
	Usage: "tables the generated signer may access",
}

var signerFlags = []cli.Flag{flags.GatewayURLFlag, flagSignerID, flagAlgorithm, flagKey, flagKeyFile}

func main() {
	app := &cli.App{
		Name:  "metadata-client",
		Usage: "Sign and send requests to the metadata gateway",
		Commands: []*cli.Command{
			{
				Name:  "generate-key",
				Usage: "generate a signer key and print its signer config entry",
				Flags: []cli.Flag{flagSignerID, flagAlgorithm, flagTables, &cli.StringFlag{
					Name:  "out",
					Value: "signer.key",
					Usage: "path to write the private key to",
				}},
				Action: generateKey,
			},
			{
				Name:   "push",
				Usage:  "send a JSON array of records to a table",
				Flags:  append([]cli.Flag{flagTable, &cli.StringFlag{Name: "file", Required: true, Usage: "JSON file with the batch, - for stdin"}}, signerFlags...),
				Action: push,
			},
			{
				Name:  "get",
				Usage: "read a page of a table",
				Flags: append([]cli.Flag{
					flagTable,
					&cli.IntFlag{Name: "offset", Value: 0},
					&cli.IntFlag{Name: "limit", Value: 0, Usage: "0 together with offset 0 reads the whole table"},
				}, signerFlags...),
				Action: get,
			},
			{
				Name:  "head",
				Usage: "show the chain head seen by the gateway",
				Flags: []cli.Flag{flags.GatewayURLFlag},
				Action: func(cCtx *cli.Context) error {
					head, err := statushandler.Head(cCtx.Context, cCtx.String(flags.GatewayURLFlag.Name))
					if err != nil {
						return err
					}
					return printJSON(head)
				},
			},
			{
				Name:  "stats",
				Usage: "show aggregated gateway stats",
				Flags: []cli.Flag{flags.GatewayURLFlag},
				Action: func(cCtx *cli.Context) error {
					snap, err := statushandler.Stats(cCtx.Context, cCtx.String(flags.GatewayURLFlag.Name))
					if err != nil {
						return err
					}
					return printJSON(snap)
				},
			},
			{
				Name:      "broadcast",
				Usage:     "forward a signed raw transaction to the node",
				ArgsUsage: "<0x-hex transaction>",
				Flags:     []cli.Flag{flags.GatewayURLFlag},
				Action: func(cCtx *cli.Context) error {
					raw, err := hexutil.Decode(strings.TrimSpace(cCtx.Args().First()))
					if err != nil {
						return fmt.Errorf("invalid transaction hex: %w", err)
					}
					hash, err := statushandler.Broadcast(cCtx.Context, cCtx.String(flags.GatewayURLFlag.Name), raw)
					if err != nil {
						return err
					}
					fmt.Println(hash)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) (*metadatahandler.Client, error) {
	alg, err := interfaces.ParseSignatureAlgorithm(cCtx.String(flagAlgorithm.Name))
	if err != nil {
		return nil, err
	}

	key := cCtx.String(flagKey.Name)
	if path := cCtx.String(flagKeyFile.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read key file: %w", err)
		}
		key = string(data)
	}
	if key == "" {
		return nil, fmt.Errorf("one of --%s or --%s is required", flagKey.Name, flagKeyFile.Name)
	}

	signer, err := cryptoutils.NewSigner(cCtx.String(flagSignerID.Name), alg, key)
	if err != nil {
		return nil, err
	}
	return metadatahandler.NewClient(cCtx.String(flags.GatewayURLFlag.Name), signer), nil
}

func push(cCtx *cli.Context) error {
	table, err := interfaces.ParseTable(cCtx.String(flagTable.Name))
	if err != nil {
		return err
	}

	var body []byte
	if path := cCtx.String("file"); path == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("could not read batch: %w", err)
	}

	client, err := newClient(cCtx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cCtx.Context, time.Minute)
	defer cancel()
	return client.UpdateRaw(ctx, table, body)
}

func get(cCtx *cli.Context) error {
	table, err := interfaces.ParseTable(cCtx.String(flagTable.Name))
	if err != nil {
		return err
	}

	client, err := newClient(cCtx)
	if err != nil {
		return err
	}

	records, err := client.Get(cCtx.Context, table, cCtx.Int("offset"), cCtx.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(records)
}

func generateKey(cCtx *cli.Context) error {
	alg, err := interfaces.ParseSignatureAlgorithm(cCtx.String(flagAlgorithm.Name))
	if err != nil {
		return err
	}

	var encoded string
	switch alg {
	case interfaces.Secp256k1:
		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate secp256k1 key: %w", err)
		}
		encoded = hex.EncodeToString(crypto.FromECDSA(key))
	case interfaces.Ed25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		encoded = hex.EncodeToString(key.Seed())
	case interfaces.P256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate ECDSA key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return fmt.Errorf("failed to marshal private key: %w", err)
		}
		encoded = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	}

	signer, err := cryptoutils.NewSigner(cCtx.String(flagSignerID.Name), alg, encoded)
	if err != nil {
		return err
	}
	pub, err := cryptoutils.PublicKeyString(signer)
	if err != nil {
		return err
	}

	if err := os.WriteFile(cCtx.String("out"), []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	return printJSON(keyregistry.SignerConfig{
		ID:        signer.SignerID(),
		Algorithm: string(alg),
		PublicKey: pub,
		Tables:    cCtx.StringSlice(flagTables.Name),
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
