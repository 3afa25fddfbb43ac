package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tmthrgd/go-hex"

	"github.com/xuperchain/objcore/lib/crypto/signature"
)

const (
	PrivateKeyFile = "private.key"
	PublicKeyFile  = "public.key"
)

type KeysCmd struct {
	BaseCmd
}

func GetKeysCmd() *KeysCmd {
	keysCmdIns := new(KeysCmd)

	keysCmdIns.cmd = &cobra.Command{
		Use:           "keys",
		Short:         "Account key operation.",
		Example:       CmdLineName + " keys gen --output ./keys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	keysCmdIns.cmd.AddCommand(getKeysGenCmd().GetCmd())
	return keysCmdIns
}

type keysGenCmd struct {
	BaseCmd
	output string
	alg    string
}

func getKeysGenCmd() *keysGenCmd {
	genCmdIns := new(keysGenCmd)

	genCmdIns.cmd = &cobra.Command{
		Use:           "gen",
		Short:         "Generate a signature key pair.",
		Example:       CmdLineName + " keys gen --alg ed25519 --output ./keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := GenerateKeys(genCmdIns.alg, genCmdIns.output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}

	genCmdIns.cmd.Flags().StringVarP(&genCmdIns.output, "output", "o", "./keys", "key output directory")
	genCmdIns.cmd.Flags().StringVarP(&genCmdIns.alg, "alg", "a", signature.AlgorithmEd25519,
		"signature algorithm: "+strings.Join(signature.Drivers(), "|"))
	return genCmdIns
}

// GenerateKeys 私钥以hex保存，公钥以base58保存，返回公钥
func GenerateKeys(alg, dir string) (string, error) {
	algorithm, err := signature.GetAlgorithm(alg)
	if err != nil {
		return "", err
	}
	priv, pub, err := algorithm.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate key failed.err:%v", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create key dir failed.err:%v", err)
	}
	privPath := filepath.Join(dir, PrivateKeyFile)
	if err := ioutil.WriteFile(privPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return "", fmt.Errorf("write %s failed.err:%v", privPath, err)
	}
	encoded := signature.EncodePublicKey(pub)
	pubPath := filepath.Join(dir, PublicKeyFile)
	if err := ioutil.WriteFile(pubPath, []byte(encoded), 0644); err != nil {
		return "", fmt.Errorf("write %s failed.err:%v", pubPath, err)
	}

	return encoded, nil
}

func LoadPrivateKey(dir string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(dir, PrivateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("read private key failed.err:%v", err)
	}
	priv, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("bad private key.err:%v", err)
	}
	return priv, nil
}
