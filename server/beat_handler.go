package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"StudioLink/cache"
	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// UploadBeatHandler handles beat audio uploads and metadata.
// Expected multipart form fields:
// - beatFile: the audio file (WAV, MP3, etc.)
// - title: beat title
// - genre: genre tag (optional)
// - bpm: beats per minute (optional)
// - priceCents: asking price in cents (optional)
//
// 文件先写进暂存目录（.part 后缀），写完重命名成 <beatID><ext>，
// 由 ingest 监听器异步搬进对象存储并把记录推进到 ready。
func (h *APIHandler) UploadBeatHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max memory
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse multipart form: %v", err))
		return
	}

	beatFile, beatHeader, err := r.FormFile("beatFile")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing 'beatFile' in form")
		return
	}
	defer beatFile.Close()

	title := r.FormValue("title")
	if title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	bpm, _ := strconv.Atoi(r.FormValue("bpm"))
	priceCents, _ := strconv.ParseInt(r.FormValue("priceCents"), 10, 64)

	beatID := uuid.NewString()

	// 同一用户同一文件同时只允许一个进行中的上传
	fingerprint := fmt.Sprintf("%s:%d", beatHeader.Filename, beatHeader.Size)
	acquired, err := cache.AcquireUploadGuard(r.Context(), userID, fingerprint, beatID)
	if err != nil {
		logger.Warn("获取上传守卫失败", logger.ErrorField(err))
	} else if !acquired {
		respondError(w, http.StatusConflict, "An upload of this file is already in progress")
		return
	}
	defer func() {
		if err := cache.ReleaseUploadGuard(r.Context(), userID, fingerprint); err != nil {
			logger.Warn("释放上传守卫失败", logger.ErrorField(err))
		}
	}()

	now := time.Now().UTC()
	beat := &model.Beat{
		ID:         beatID,
		OwnerID:    userID,
		Title:      title,
		Genre:      r.FormValue("genre"),
		BPM:        bpm,
		PriceCents: priceCents,
		Status:     model.BeatStaged,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.beatRepo.Create(r.Context(), beat); err != nil {
		logger.Error("创建伴奏记录失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create beat")
		return
	}

	if err := h.stageBeatFile(r, beatFile, beatHeader.Size, beatID, filepath.Ext(beatHeader.Filename)); err != nil {
		logger.Error("暂存伴奏文件失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to store beat file")
		return
	}

	h.publishChange(r.Context(), queue.CollectionBeats, beatID, nil, beat)

	logger.Info("伴奏上传已受理",
		logger.String("beat", beatID),
		logger.Int64("owner", userID),
		logger.Int64("size", beatHeader.Size))
	respondJSON(w, http.StatusAccepted, beat)
}

// stageBeatFile 把上传流写进暂存目录，边写边上报进度。
// 进度最多报到95%，剩下的5%留给入库完成时由监听器补齐。
func (h *APIHandler) stageBeatFile(r *http.Request, src io.Reader, size int64, beatID, ext string) error {
	if err := os.MkdirAll(h.cfg.BeatStagingDir, 0755); err != nil {
		return fmt.Errorf("创建暂存目录失败: %w", err)
	}

	partPath := filepath.Join(h.cfg.BeatStagingDir, beatID+ext+".part")
	finalPath := filepath.Join(h.cfg.BeatStagingDir, beatID+ext)

	dst, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("创建暂存文件失败: %w", err)
	}

	buf := make([]byte, 256<<10) // 256KB
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				dst.Close()
				os.Remove(partPath)
				return fmt.Errorf("写入暂存文件失败: %w", writeErr)
			}
			written += int64(n)
			if size > 0 {
				percent := int(written * 95 / size)
				if err := cache.ReportUploadProgress(r.Context(), beatID, percent); err != nil {
					logger.Debug("上报上传进度失败", logger.ErrorField(err))
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			os.Remove(partPath)
			return fmt.Errorf("读取上传流失败: %w", readErr)
		}
	}

	if err := dst.Close(); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("关闭暂存文件失败: %w", err)
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("暂存文件改名失败: %w", err)
	}
	return nil
}

// UploadProgressHandler 查询某个伴奏的上传/入库进度（0-100）
func (h *APIHandler) UploadProgressHandler(w http.ResponseWriter, r *http.Request) {
	beatID := mux.Vars(r)["id"]

	percent, found, err := cache.GetUploadProgress(r.Context(), beatID)
	if err != nil {
		logger.Warn("查询上传进度失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "Unknown upload")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"percent": percent})
}

// GetBeatHandler 查询单个伴奏
func (h *APIHandler) GetBeatHandler(w http.ResponseWriter, r *http.Request) {
	beatID := mux.Vars(r)["id"]

	beat, err := h.beatRepo.GetByID(r.Context(), beatID)
	if err != nil {
		logger.Error("查询伴奏失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if beat == nil {
		respondError(w, http.StatusNotFound, "Beat not found")
		return
	}
	respondJSON(w, http.StatusOK, beat)
}

// ListMyBeatsHandler 列出当前用户上传的伴奏
func (h *APIHandler) ListMyBeatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	beats, err := h.beatRepo.ListByOwner(r.Context(), userID)
	if err != nil {
		logger.Error("查询伴奏列表失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, beats)
}

// ListMarketBeatsHandler 列出市场里已就绪的伴奏
func (h *APIHandler) ListMarketBeatsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	beats, err := h.beatRepo.ListReady(r.Context(), limit)
	if err != nil {
		logger.Error("查询市场伴奏失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, beats)
}
