package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/server/rpc"
)

const CmdLineName = "objnode"

// 客户端命令的公共参数
const (
	DefaultHost    = config.DefaultListen
	DefaultTimeout = 30 * time.Second
)

type BaseCmd struct {
	cmd *cobra.Command
}

func (t *BaseCmd) GetCmd() *cobra.Command {
	return t.cmd
}

// ClientFlags 连接节点的参数
type ClientFlags struct {
	Host    string
	Timeout time.Duration
}

func (f *ClientFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Host, "host", "H", DefaultHost, "node rpc address")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", DefaultTimeout, "request timeout")
}

// dial 返回的关闭函数需要调用方执行
func (f *ClientFlags) dial() (*rpc.ObjcoreClient, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	defer cancel()
	conn, err := grpc.DialContext(ctx, f.Host, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, nil, fmt.Errorf("grpc dial %s failed.err:%v", f.Host, err)
	}
	return rpc.NewObjcoreClient(conn), func() { conn.Close() }, nil
}

func checkHeader(header *rpc.RespHeader) error {
	if header == nil {
		return fmt.Errorf("empty response header")
	}
	if header.Error != rpc.ErrCodeSuccess {
		return fmt.Errorf("node error %d: %s (log_id %s)", header.Error, header.Message, header.LogId)
	}
	return nil
}
