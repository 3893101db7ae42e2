// Package files реализует админские HTTP-обработчики материалов курса.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/bankrot-course/internal/http/response"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	filesvc "github.com/magabrotheeeer/bankrot-course/internal/services/files"
)

// Service описывает операции с файлами.
type Service interface {
	Upload(ctx context.Context, p filesvc.UploadParams) (*models.CourseFile, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.CourseFile, error)
	Delete(ctx context.Context, id int64) error
	Content(ctx context.Context, id int64) (*filesvc.Content, error)
}

// UploadRequest тело запроса загрузки. file_content в base64.
type UploadRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	FileContent string `json:"file_content" validate:"required"`
	FileType    string `json:"file_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LessonID    *int64 `json:"lesson_id"`
	ModuleID    *int64 `json:"module_id"`
}

// Handler обработчики файлов курса.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Upload загружает файл.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.upload")

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.JSON(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	f, err := h.service.Upload(r.Context(), filesvc.UploadParams{
		FileName:    req.FileName,
		FileContent: req.FileContent,
		FileType:    req.FileType,
		Title:       req.Title,
		Description: req.Description,
		LessonID:    req.LessonID,
		ModuleID:    req.ModuleID,
	})
	if err != nil {
		switch {
		case errors.Is(err, filesvc.ErrMissingFields), errors.Is(err, filesvc.ErrInvalidContent):
			response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
		case errors.Is(err, filesvc.ErrTooLarge):
			response.JSON(w, r, http.StatusRequestEntityTooLarge, response.Error(err.Error()))
		case errors.Is(err, filesvc.ErrStorageNotConfigured):
			log.Error("file storage is not configured")
			response.JSON(w, r, http.StatusInternalServerError, response.Error(err.Error()))
		default:
			log.Error("upload failed", sl.Err(err))
			response.JSON(w, r, http.StatusBadGateway, response.ErrorWithDetails("File upload failed", err.Error()))
		}
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"success": true, "file": f})
}

func parseOptionalID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List возвращает файлы с фильтрами ?lesson_id= и ?module_id=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.list")

	lessonID, err := parseOptionalID(r, "lesson_id")
	if err != nil {
		response.JSON(w, r, http.StatusBadRequest, response.Error("lesson_id must be a number"))
		return
	}
	moduleID, err := parseOptionalID(r, "module_id")
	if err != nil {
		response.JSON(w, r, http.StatusBadRequest, response.Error("module_id must be a number"))
		return
	}

	res, err := h.service.List(r.Context(), models.FileFilter{LessonID: lessonID, ModuleID: moduleID})
	if err != nil {
		log.Error("list failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"files": res})
}

// Delete удаляет файл по ?id=.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.delete")

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		response.JSON(w, r, http.StatusBadRequest, response.Error("File id is required"))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, filesvc.ErrNotFound) {
			response.JSON(w, r, http.StatusNotFound, response.Error(err.Error()))
			return
		}
		log.Error("delete failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

// Content отдает содержимое файла /files/{id}/content.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.content")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.JSON(w, r, http.StatusBadRequest, response.Error("File id is required"))
		return
	}
	c, err := h.service.Content(r.Context(), id)
	if err != nil {
		if errors.Is(err, filesvc.ErrNotFound) {
			response.JSON(w, r, http.StatusNotFound, response.Error(err.Error()))
			return
		}
		log.Error("content failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("Internal server error"))
		return
	}

	contentType := c.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": c.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(c.Data); err != nil {
		log.Warn("failed to write file content", sl.Err(err))
	}
}
