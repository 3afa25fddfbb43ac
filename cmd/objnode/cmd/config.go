package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	xconf "github.com/xuperchain/objcore/kernel/common/xconfig"
	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/utils"
)

const EnvConfName = "env.yaml"

type ConfigCmd struct {
	BaseCmd
}

func GetConfigCmd() *ConfigCmd {
	configCmdIns := new(ConfigCmd)

	configCmdIns.cmd = &cobra.Command{
		Use:           "config",
		Short:         "Node config operation.",
		Example:       CmdLineName + " config init --root ./node1",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configCmdIns.cmd.AddCommand(getConfigInitCmd().GetCmd())
	return configCmdIns
}

type configInitCmd struct {
	BaseCmd
	root  string
	force bool
}

func getConfigInitCmd() *configInitCmd {
	initCmdIns := new(configInitCmd)

	initCmdIns.cmd = &cobra.Command{
		Use:           "init",
		Short:         "Write default env, node and log config files.",
		Example:       CmdLineName + " config init --root ./node1",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			envPath, err := InitConfig(initCmdIns.root, initCmdIns.force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written, startup with: %s startup --conf %s\n",
				CmdLineName, envPath)
			return nil
		},
	}

	initCmdIns.cmd.Flags().StringVarP(&initCmdIns.root, "root", "r", ".", "node root directory")
	initCmdIns.cmd.Flags().BoolVarP(&initCmdIns.force, "force", "f", false, "overwrite existing files")
	return initCmdIns
}

// InitConfig 在root/conf下写入默认配置，返回env配置文件路径
func InitConfig(root string, force bool) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("bad root %s: %v", root, err)
	}

	envConf := xconf.GetDefEnvConf()
	envConf.RootPath = absRoot
	confDir := envConf.GenDirAbsPath(envConf.ConfDir)
	if err := os.MkdirAll(confDir, 0755); err != nil {
		return "", fmt.Errorf("create conf dir failed.err:%v", err)
	}

	files := []struct {
		name string
		conf interface{}
	}{
		{EnvConfName, envConf},
		{envConf.NodeConf, config.GetDefNodeConf()},
		{envConf.LogConf, logs.GetDefLogConf()},
	}
	for _, f := range files {
		if err := writeYaml(filepath.Join(confDir, f.name), f.conf, force); err != nil {
			return "", err
		}
	}

	return filepath.Join(confDir, EnvConfName), nil
}

func writeYaml(path string, conf interface{}, force bool) error {
	if !force && utils.FileIsExist(path) {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	data, err := yaml.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal %s failed.err:%v", path, err)
	}
	return ioutil.WriteFile(path, data, 0644)
}
