package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/service"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
)

type documentService interface {
	CreateDocument(ctx context.Context, caller *models.Caller, req dto.CreateDocumentRequest, upload *dto.Upload) (*dto.DocumentResponse, error)
	NewVersion(ctx context.Context, caller *models.Caller, documentID string, req dto.NewVersionRequest, upload *dto.Upload) (*dto.DocumentResponse, error)
	UpdateDocument(ctx context.Context, caller *models.Caller, documentID string, req dto.UpdateDocumentRequest) (*dto.DocumentResponse, error)
	DeleteDocument(ctx context.Context, caller *models.Caller, documentID string) error
	Resend(ctx context.Context, caller *models.Caller, documentID string) (*dto.DocumentResponse, error)
	Reposition(ctx context.Context, caller *models.Caller, documentID string, req dto.RepositionRequest) (*dto.DocumentResponse, error)
	ListMine(ctx context.Context, caller *models.Caller) ([]dto.DocumentResponse, error)
	ListPending(ctx context.Context, caller *models.Caller) ([]dto.PendingApproval, error)
	GetDocument(ctx context.Context, caller *models.Caller, documentID string) (*dto.DocumentResponse, error)
	GetByAccessToken(ctx context.Context, accessToken string) (*dto.DocumentResponse, error)
	History(ctx context.Context, caller *models.Caller, documentID string) (*dto.HistoryResponse, error)
	ExportHistory(ctx context.Context, caller *models.Caller, documentID, format string) (*service.ExportResult, error)
}

// DocumentHandler exposes document workflow endpoints.
type DocumentHandler struct {
	service       documentService
	maxUploadSize int64
}

// NewDocumentHandler constructs the handler. maxUploadSize caps the bytes read from the file part.
func NewDocumentHandler(service documentService, maxUploadSize int64) *DocumentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 20 * 1024 * 1024
	}
	return &DocumentHandler{service: service, maxUploadSize: maxUploadSize}
}

// Create godoc
// @Summary Upload a document for approval
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Param metadata formData string true "dto.CreateDocumentRequest as JSON"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.CreateDocumentRequest
	if err := bindMetadata(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	upload, err := h.readUpload(c, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.CreateDocument(c.Request.Context(), caller, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// NewVersion godoc
// @Summary Supersede a rejected document with a new version
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID"
// @Param file formData file false "Replacement PDF, defaults to the previous original"
// @Param metadata formData string true "dto.NewVersionRequest as JSON"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/versions [post]
func (h *DocumentHandler) NewVersion(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.NewVersionRequest
	if err := bindMetadata(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	upload, err := h.readUpload(c, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.NewVersion(c.Request.Context(), caller, c.Param("id"), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// ListMine godoc
// @Summary List documents created by the caller
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/mine [get]
func (h *DocumentHandler) ListMine(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	docs, err := h.service.ListMine(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, map[string]interface{}{"total": len(docs)})
}

// ListPending godoc
// @Summary List approvals awaiting the caller
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/pending [get]
func (h *DocumentHandler) ListPending(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	items, err := h.service.ListPending(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Get godoc
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	doc, err := h.service.GetDocument(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// GetByAccessToken godoc
// @Summary Get a document by its access token
// @Tags Documents
// @Produce json
// @Param token path string true "Document access token"
// @Success 200 {object} response.Envelope
// @Router /documents/access/{token} [get]
func (h *DocumentHandler) GetByAccessToken(c *gin.Context) {
	if callerFromContext(c) == nil {
		return
	}
	doc, err := h.service.GetByAccessToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// History godoc
// @Summary Lineage history of a document
// @Tags Documents
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Document ID"
// @Param format query string false "csv or pdf, JSON when omitted"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/history [get]
func (h *DocumentHandler) History(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	format := strings.TrimSpace(c.Query("format"))
	if format == "" || strings.EqualFold(format, "json") {
		history, err := h.service.History(c.Request.Context(), caller, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, history, nil)
		return
	}
	result, err := h.service.ExportHistory(c.Request.Context(), caller, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Update godoc
// @Summary Edit a pending document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [patch]
func (h *DocumentHandler) Update(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	doc, err := h.service.UpdateDocument(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete a document and its files
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	if err := h.service.DeleteDocument(c.Request.Context(), caller, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resend godoc
// @Summary Reopen an expired document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/resend [post]
func (h *DocumentHandler) Resend(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	doc, err := h.service.Resend(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Reposition godoc
// @Summary Move signature boxes and reapply existing signatures
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.RepositionRequest true "New slot geometry"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/positions [put]
func (h *DocumentHandler) Reposition(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.RepositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid positions payload"))
		return
	}
	doc, err := h.service.Reposition(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// bindMetadata decodes the JSON "metadata" form field into dst.
func bindMetadata(c *gin.Context, dst interface{}) error {
	raw := strings.TrimSpace(c.PostForm("metadata"))
	if raw == "" {
		return appErrors.Clone(appErrors.ErrValidation, "metadata is required")
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload")
	}
	return nil
}

// readUpload loads the "file" form part. A missing optional part yields nil.
func (h *DocumentHandler) readUpload(c *gin.Context, required bool) (*dto.Upload, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if fileHeader.Size > h.maxUploadSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooBig, fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadSize))
	}
	data, err := readPart(fileHeader, h.maxUploadSize)
	if err != nil {
		return nil, err
	}
	return &dto.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readPart(fileHeader *multipart.FileHeader, limit int64) ([]byte, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file")
	}
	if int64(len(data)) > limit {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooBig, fmt.Sprintf("file exceeds the %d byte limit", limit))
	}
	return data, nil
}
