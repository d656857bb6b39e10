package cmd

import (
	"StudioLink/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动API服务器",
	Long:  `启动StudioLink的HTTP服务器，提供预订、伴奏市场、聊天和通知的API。`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
