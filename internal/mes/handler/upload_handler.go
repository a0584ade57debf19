package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// UploadHandler 文件上传处理器
type UploadHandler struct {
	svc *service.UploadService
}

// NewUploadHandler 创建文件上传处理器
func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Upload 上传文件到对象存储
// POST /api/v1/upload
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "无法解析上传文件: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		// 也尝试获取单文件
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "没有上传文件")
		return
	}

	var uploaded []service.UploadResult

	for _, fileHeader := range files {
		src, err := fileHeader.Open()
		if err != nil {
			InternalError(c, "读取上传文件失败: "+err.Error())
			return
		}
		result, err := h.svc.Upload(c.Request.Context(), fileHeader.Filename, fileHeader.Size,
			fileHeader.Header.Get("Content-Type"), src)
		src.Close()
		if err != nil {
			if errors.Is(err, service.ErrStorageUnavailable) {
				Error(c, 50300, "对象存储不可用")
				return
			}
			BadRequest(c, err.Error())
			return
		}
		uploaded = append(uploaded, *result)
	}

	Success(c, uploaded)
}

// Download 从对象存储回源文件
// GET /uploads/*path
func (h *UploadHandler) Download(c *gin.Context) {
	objectName := strings.TrimPrefix(c.Param("path"), "/")
	if objectName == "" {
		NotFound(c, "文件不存在")
		return
	}

	obj, err := h.svc.Download(c.Request.Context(), objectName)
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			Error(c, 50300, "对象存储不可用")
			return
		}
		NotFound(c, "文件不存在")
		return
	}
	defer obj.Close()

	c.Status(200)
	if _, err := io.Copy(c.Writer, obj); err != nil {
		// 传输中断，无法再写错误响应
		return
	}
}
