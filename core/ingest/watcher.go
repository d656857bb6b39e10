// Package ingest 监听伴奏暂存目录，把落盘完成的音频文件搬进对象存储。
// 上传接口先把文件写成 .part 再重命名为 <beatID><ext>，这里只认重命名后的
// 最终文件名；文件稳定（大小不再变化）后入库并把伴奏标记为 ready。
package ingest

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"StudioLink/cache"
	"StudioLink/logger"
	"StudioLink/storage"
)

// BeatMarker 入库完成后把伴奏记录推进到 ready。
type BeatMarker interface {
	MarkReady(ctx context.Context, id, objectKey string) error
}

// Watcher 暂存目录监听器
type Watcher struct {
	stagingDir string
	beats      BeatMarker
}

// NewWatcher 创建暂存目录监听器
func NewWatcher(stagingDir string, beats BeatMarker) *Watcher {
	return &Watcher{stagingDir: stagingDir, beats: beats}
}

// Run 启动监听循环，ctx 取消后返回。启动时先扫一遍目录，
// 把上次进程退出前遗留的文件补入库。
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.stagingDir, 0755); err != nil {
		return fmt.Errorf("创建暂存目录失败: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.stagingDir); err != nil {
		return fmt.Errorf("监听暂存目录失败: %w", err)
	}

	logger.Info("暂存目录监听已启动", logger.String("dir", w.stagingDir))

	// 补扫遗留文件
	w.sweep(ctx)

	// 文件稳定性检查的延迟队列
	pendingFiles := make(map[string]time.Time)
	checkTicker := time.NewTicker(500 * time.Millisecond)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && ingestable(event.Name) {
				pendingFiles[event.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听出错", logger.ErrorField(err))

		case <-checkTicker.C:
			now := time.Now()
			for path, lastEvent := range pendingFiles {
				// 1s 内还有事件说明文件可能仍在写入
				if now.Sub(lastEvent) < time.Second {
					continue
				}
				delete(pendingFiles, path)
				w.ingest(ctx, path)
			}
		}
	}
}

// sweep 扫描暂存目录，入库所有已完成的文件。
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.stagingDir)
	if err != nil {
		logger.Warn("扫描暂存目录失败", logger.ErrorField(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.stagingDir, entry.Name())
		if ingestable(path) {
			w.ingest(ctx, path)
		}
	}
}

// ingest 把单个暂存文件写入对象存储并推进伴奏状态，成功后删除本地文件。
// 任何一步失败都保留文件，等下次补扫重试。
func (w *Watcher) ingest(ctx context.Context, path string) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	beatID := strings.TrimSuffix(base, ext)
	if beatID == "" {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("打开暂存文件失败", logger.String("path", path), logger.ErrorField(err))
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := storage.BeatObjectKey(beatID, ext)
	if err := storage.UploadBeatObject(ctx, objectKey, f, info.Size(), contentType); err != nil {
		logger.Error("暂存文件入库失败",
			logger.String("beatId", beatID), logger.ErrorField(err))
		return
	}

	if err := w.beats.MarkReady(ctx, beatID, objectKey); err != nil {
		logger.Error("推进伴奏状态失败",
			logger.String("beatId", beatID), logger.ErrorField(err))
		return
	}

	if err := cache.ReportUploadProgress(ctx, beatID, 100); err != nil {
		logger.Debug("上报上传进度失败",
			logger.String("beatId", beatID), logger.ErrorField(err))
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("清理暂存文件失败", logger.String("path", path), logger.ErrorField(err))
	}

	logger.Info("伴奏入库完成",
		logger.String("beatId", beatID),
		logger.String("objectKey", objectKey))
}

// ingestable 报告文件名是否是待入库的最终文件（排除写入中的 .part）。
func ingestable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return !strings.HasSuffix(base, ".part")
}
