package models

import "time"

// CourseFile метаданные загруженного материала курса.
type CourseFile struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileName    string    `json:"file_name"`
	FileURL     string    `json:"file_url"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	StorageKey  string    `json:"-"`
	LessonID    *int64    `json:"lesson_id,omitempty"`
	ModuleID    *int64    `json:"module_id,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// FileFilter фильтр списка файлов.
type FileFilter struct {
	LessonID *int64
	ModuleID *int64
}
