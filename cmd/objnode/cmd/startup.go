package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	xconf "github.com/xuperchain/objcore/kernel/common/xconfig"
	"github.com/xuperchain/objcore/kernel/engines"
	"github.com/xuperchain/objcore/kernel/engines/objnode"
	"github.com/xuperchain/objcore/server"
)

type StartupCmd struct {
	BaseCmd
}

func GetStartupCmd() *StartupCmd {
	startupCmdIns := new(StartupCmd)

	// 定义命令行参数变量
	var envCfgPath string

	startupCmdIns.cmd = &cobra.Command{
		Use:           "startup",
		Short:         "Start up the object store node.",
		Example:       CmdLineName + " startup --conf ./conf/env.yaml",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return StartupNode(envCfgPath)
		},
	}

	// 设置命令行参数并绑定变量
	startupCmdIns.cmd.Flags().StringVarP(&envCfgPath, "conf", "c", "./conf/env.yaml",
		"engine environment config file path")

	return startupCmdIns
}

// 启动节点
func StartupNode(envCfgPath string) error {
	// 加载基础配置
	envConf, err := xconf.LoadEnvConf(envCfgPath)
	if err != nil {
		return err
	}

	// 实例化节点引擎，日志在引擎创建时初始化
	engine, err := engines.CreateBCEngine(objnode.BCEngineName, envConf)
	if err != nil {
		return err
	}
	// 实例化rpc和metric服务
	servMG, err := server.NewServMG(envConf, engine)
	if err != nil {
		engine.Exit()
		return err
	}

	// 启动服务和引擎
	engChan := runEngine(engine)
	servChan := runServMG(servMG)

	// 阻塞等待进程退出指令
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	// 退出调用幂等，等待两者都退出
	var servErr error
	engExited, servExited := false, false
	for !engExited || !servExited {
		select {
		case <-engChan:
			engExited = true
			servMG.Exit()
		case servErr = <-servChan:
			servExited = true
			engine.Exit()
		case <-sigChan:
			servMG.Exit()
			engine.Exit()
		}
	}

	return servErr
}

func runEngine(engine engines.BCEngine) <-chan bool {
	exitCh := make(chan bool, 1)

	// 启动引擎，监听退出信号
	go func() {
		engine.Run()
		exitCh <- true
	}()

	return exitCh
}

func runServMG(servMG *server.ServMG) <-chan error {
	exitCh := make(chan error, 1)

	// 启动服务，监听退出信号
	go func() {
		exitCh <- servMG.Run()
	}()

	return exitCh
}
