package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/server/rpc"
)

type StateCmd struct {
	BaseCmd
	ClientFlags
}

func GetStateCmd() *StateCmd {
	stateCmdIns := new(StateCmd)

	stateCmdIns.cmd = &cobra.Command{
		Use:           "state <object>",
		Short:         "Print the class tag and latest fields of an object.",
		Example:       CmdLineName + " state <txhex>#<progressive>",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stateCmdIns.query(cmd.OutOrStdout(), args[0])
		},
	}

	stateCmdIns.bind(stateCmdIns.cmd)
	return stateCmdIns
}

func (t *StateCmd) query(out io.Writer, object string) error {
	client, closer, err := t.dial()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()
	resp, err := client.GetState(ctx, &rpc.GetStateReq{Object: object})
	if err != nil {
		return fmt.Errorf("get state failed.err:%v", err)
	}
	if err := checkHeader(resp.Header); err != nil {
		return err
	}

	PrintState(out, resp.Updates)
	return nil
}

// PrintState 以表格输出对象状态，类标签在前
func PrintState(out io.Writer, updates protocol.Updates) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Type", "Value"})
	table.SetAutoWrapText(false)

	for _, u := range protocol.SortUpdates(updates) {
		switch up := u.(type) {
		case protocol.ClassTag:
			table.Append([]string{"<class>", up.ClassName, up.Package.String()})
		case protocol.FieldUpdate:
			value := "null"
			if up.Value != nil {
				value = up.Value.String()
			}
			table.Append([]string{up.Field.DefiningClass + "." + up.Field.Name, string(up.Field.Type), value})
		}
	}
	table.Render()
}
