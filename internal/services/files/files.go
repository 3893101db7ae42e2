// Package files управляет материалами курса: загрузка, список, удаление и выдача содержимого.
//
// Содержимое хранится либо в S3 (backend "s3"), либо в самой базе (backend "database").
package files

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

// Хранилища содержимого.
const (
	BackendS3       = "s3"
	BackendDatabase = "database"
)

const defaultFileType = "application/pdf"

var (
	ErrMissingFields        = errors.New("file_name and file_content are required")
	ErrInvalidContent       = errors.New("file_content must be base64")
	ErrTooLarge             = errors.New("file is too large")
	ErrNotFound             = errors.New("File not found")
	ErrStorageNotConfigured = errors.New("File storage not configured")
)

// Repository хранилище метаданных файлов.
type Repository interface {
	CreateCourseFile(ctx context.Context, f models.CourseFile, data []byte) (*models.CourseFile, error)
	UpdateFileURL(ctx context.Context, id int64, url string) error
	ListCourseFiles(ctx context.Context, filter models.FileFilter) ([]models.CourseFile, error)
	GetCourseFile(ctx context.Context, id int64) (*models.CourseFile, error)
	GetCourseFileContent(ctx context.Context, id int64) ([]byte, error)
	DeleteCourseFile(ctx context.Context, id int64) (*models.CourseFile, error)
}

// ObjectStore объектное хранилище.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// UploadParams параметры загрузки. FileContent в base64.
type UploadParams struct {
	FileName    string
	FileContent string
	FileType    string
	Title       string
	Description string
	LessonID    *int64
	ModuleID    *int64
}

// Content содержимое файла для скачивания.
type Content struct {
	FileName string
	FileType string
	Data     []byte
}

// Service сервис файлов курса.
type Service struct {
	log     *slog.Logger
	repo    Repository
	objects ObjectStore
	backend string
	maxSize int64
}

// New создает сервис. objects может быть nil для backend "database".
func New(log *slog.Logger, repo Repository, objects ObjectStore, cfg config.Files) *Service {
	backend := cfg.Backend
	if backend != BackendDatabase {
		backend = BackendS3
	}
	return &Service{
		log:     log,
		repo:    repo,
		objects: objects,
		backend: backend,
		maxSize: cfg.MaxSize,
	}
}

// ObjectKey ключ объекта: files/{uuid}-{slug имени}{расширение}.
func ObjectKey(id uuid.UUID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	name := slug.Make(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	if name == "" {
		name = "file"
	}
	return "files/" + id.String() + "-" + name + ext
}

// ContentURL путь для скачивания файла, хранящегося в базе.
func ContentURL(id int64) string {
	return "/api/v1/files/" + strconv.FormatInt(id, 10) + "/content"
}

// Upload декодирует содержимое, сохраняет его и создает запись о файле.
func (s *Service) Upload(ctx context.Context, p UploadParams) (*models.CourseFile, error) {
	const op = "services.files.Upload"
	p.FileName = strings.TrimSpace(p.FileName)
	if p.FileName == "" || p.FileContent == "" {
		return nil, ErrMissingFields
	}
	data, err := base64.StdEncoding.DecodeString(p.FileContent)
	if err != nil {
		return nil, ErrInvalidContent
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}
	if p.FileType == "" {
		p.FileType = defaultFileType
	}
	if p.Title == "" {
		p.Title = p.FileName
	}
	log := s.log.With(slog.String("op", op), slog.String("file_name", p.FileName), slog.String("backend", s.backend))

	meta := models.CourseFile{
		Title:       p.Title,
		Description: p.Description,
		FileName:    p.FileName,
		FileType:    p.FileType,
		FileSize:    int64(len(data)),
		LessonID:    p.LessonID,
		ModuleID:    p.ModuleID,
	}

	if s.backend == BackendDatabase {
		created, err := s.repo.CreateCourseFile(ctx, meta, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		created.FileURL = ContentURL(created.ID)
		if err := s.repo.UpdateFileURL(ctx, created.ID, created.FileURL); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("file stored in database", slog.Int64("file_id", created.ID))
		return created, nil
	}

	if s.objects == nil {
		return nil, ErrStorageNotConfigured
	}
	meta.StorageKey = ObjectKey(uuid.New(), p.FileName)
	meta.FileURL, err = s.objects.Put(ctx, meta.StorageKey, p.FileType, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.repo.CreateCourseFile(ctx, meta, nil)
	if err != nil {
		if derr := s.objects.Delete(ctx, meta.StorageKey); derr != nil {
			log.Warn("failed to remove orphan object", slog.String("key", meta.StorageKey), sl.Err(derr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("file uploaded", slog.Int64("file_id", created.ID), slog.String("key", meta.StorageKey))
	return created, nil
}

// List возвращает файлы, новые первыми.
func (s *Service) List(ctx context.Context, filter models.FileFilter) ([]models.CourseFile, error) {
	const op = "services.files.List"
	res, err := s.repo.ListCourseFiles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Delete удаляет запись о файле и его объект в хранилище.
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "services.files.Delete"
	deleted, err := s.repo.DeleteCourseFile(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(slog.String("op", op), slog.Int64("file_id", id))
	if deleted.StorageKey != "" && s.objects != nil {
		if err := s.objects.Delete(ctx, deleted.StorageKey); err != nil {
			log.Warn("failed to delete object", slog.String("key", deleted.StorageKey), sl.Err(err))
		}
	}
	log.Info("file deleted")
	return nil
}

// Content возвращает содержимое файла, хранящегося в базе.
func (s *Service) Content(ctx context.Context, id int64) (*Content, error) {
	const op = "services.files.Content"
	meta, err := s.repo.GetCourseFile(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := s.repo.GetCourseFileContent(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Content{FileName: meta.FileName, FileType: meta.FileType, Data: data}, nil
}
