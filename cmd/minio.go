package cmd

import (
	"context"
	"fmt"
	"log"

	"StudioLink/config"
	"StudioLink/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioRecursive bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `连接MinIO并列出存储桶中的伴奏对象，用于排查入库问题。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		// 初始化MinIO客户端
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		client := storage.GetMinioClient()
		ctx := context.Background()

		fmt.Printf("\n列出存储桶中的文件 (前缀: %s)...\n", minioPrefix)
		var count int
		var totalSize int64
		for object := range client.ListObjects(ctx, cfg.MinioBucket, minio.ListObjectsOptions{
			Prefix:    minioPrefix,
			Recursive: minioRecursive,
		}) {
			if object.Err != nil {
				log.Fatalf("列出文件失败: %v", object.Err)
			}
			fmt.Printf("  %s\t%d bytes\n", object.Key, object.Size)
			count++
			totalSize += object.Size
		}
		fmt.Printf("\n共 %d 个对象，%d bytes\n", count, totalSize)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "beats/", "按前缀过滤对象")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", true, "递归列出子目录")
}
