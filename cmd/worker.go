package cmd

import (
	"StudioLink/worker"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "启动同步触发器worker",
	Long: `启动派生状态同步的消费进程：从变更事件队列消费文档写入，
维护日历占位镜像、评分聚合、下载放行镜像并分发通知。`,
	Run: func(cmd *cobra.Command, args []string) {
		worker.Start()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
