package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/spf13/cobra"

	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/lib/crypto/signature"
	"github.com/xuperchain/objcore/server/rpc"
)

type RequestCmd struct {
	BaseCmd
	ClientFlags
	file string
	keys string
	alg  string
}

func GetRequestCmd() *RequestCmd {
	requestCmdIns := new(RequestCmd)

	requestCmdIns.cmd = &cobra.Command{
		Use:           "request",
		Short:         "Submit a json request to the node and print its response.",
		Example:       CmdLineName + " request --file ./transfer.json --keys ./keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return requestCmdIns.submit(cmd.OutOrStdout())
		},
	}

	requestCmdIns.bind(requestCmdIns.cmd)
	requestCmdIns.cmd.Flags().StringVarP(&requestCmdIns.file, "file", "f", "", "json request file")
	requestCmdIns.cmd.Flags().StringVarP(&requestCmdIns.keys, "keys", "k", "",
		"key directory, sign the request with its private key when set")
	requestCmdIns.cmd.Flags().StringVarP(&requestCmdIns.alg, "alg", "a", signature.AlgorithmEd25519,
		"signature algorithm of the node")
	requestCmdIns.cmd.MarkFlagRequired("file")

	return requestCmdIns
}

func (t *RequestCmd) submit(out io.Writer) error {
	data, err := ioutil.ReadFile(t.file)
	if err != nil {
		return fmt.Errorf("read request file failed.err:%v", err)
	}
	data, err = SignRequestJSON(data, t.keys, t.alg)
	if err != nil {
		return err
	}

	client, closer, err := t.dial()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()
	resp, err := client.AddRequest(ctx, &rpc.AddRequestReq{Request: data})
	if err != nil {
		return fmt.Errorf("add request failed.err:%v", err)
	}
	if err := checkHeader(resp.Header); err != nil {
		return err
	}

	return printResponse(out, resp.Reference, resp.Response)
}

// SignRequestJSON 解析请求并按需签名，keyDir为空时原样校验后返回
func SignRequestJSON(data []byte, keyDir, alg string) ([]byte, error) {
	req, err := protocol.UnmarshalRequestJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode request failed.err:%v", err)
	}
	if keyDir == "" {
		return data, nil
	}

	signed, ok := req.(protocol.SignedRequest)
	if !ok {
		return nil, fmt.Errorf("%s request can not be signed", req.RequestKind())
	}
	algorithm, err := signature.GetAlgorithm(alg)
	if err != nil {
		return nil, err
	}
	priv, err := LoadPrivateKey(keyDir)
	if err != nil {
		return nil, err
	}
	if err := protocol.Sign(signed, algorithm, priv); err != nil {
		return nil, fmt.Errorf("sign request failed.err:%v", err)
	}
	return protocol.MarshalRequestJSON(signed)
}

func printResponse(out io.Writer, ref string, response []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, response, "", "  "); err != nil {
		return fmt.Errorf("bad response json.err:%v", err)
	}
	fmt.Fprintf(out, "reference: %s\n%s\n", ref, buf.String())
	return nil
}
