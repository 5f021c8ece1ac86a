package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/storage"
)

type downloadVerifier interface {
	Parse(token string) (storage.DownloadGrant, error)
}

type blobReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// FileHandler serves working PDFs behind signed expiring links.
type FileHandler struct {
	signer downloadVerifier
	blobs  blobReader
	logger *zap.Logger
}

// NewFileHandler constructs the handler.
func NewFileHandler(signer downloadVerifier, blobs blobReader, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{signer: signer, blobs: blobs, logger: logger}
}

// Download godoc
// @Summary Download a document through a signed link
// @Tags Files
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	grant, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		h.logger.Debug("rejected download token", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired"))
		return
	}
	data, err := h.blobs.Read(c.Request.Context(), grant.Key)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read file"))
		return
	}
	filename := grant.Filename
	if filename == "" {
		filename = path.Base(grant.Key)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", data)
}
