package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/bankrot-course/internal/models"
	"github.com/magabrotheeeer/bankrot-course/internal/storage"
)

const courseFileColumns = `id, title, description, file_name, file_url, file_type, file_size, storage_key, lesson_id, module_id, uploaded_at`

func scanCourseFile(row interface{ Scan(...any) error }) (*models.CourseFile, error) {
	f := &models.CourseFile{}
	var lessonID, moduleID sql.NullInt64
	err := row.Scan(&f.ID, &f.Title, &f.Description, &f.FileName, &f.FileURL, &f.FileType,
		&f.FileSize, &f.StorageKey, &lessonID, &moduleID, &f.UploadedAt)
	if err != nil {
		return nil, err
	}
	if lessonID.Valid {
		f.LessonID = &lessonID.Int64
	}
	if moduleID.Valid {
		f.ModuleID = &moduleID.Int64
	}
	return f, nil
}

// CreateCourseFile сохраняет метаданные файла. data пишется в file_data только
// для хранения в базе, для S3 передается nil.
func (s *Storage) CreateCourseFile(ctx context.Context, f models.CourseFile, data []byte) (*models.CourseFile, error) {
	const op = "storage.CreateCourseFile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO course_files
			  (title, description, file_name, file_url, file_type, file_size, storage_key, file_data, lesson_id, module_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING ` + courseFileColumns
	created, err := scanCourseFile(s.conn(ctx).QueryRowContext(ctx, query,
		f.Title, f.Description, f.FileName, f.FileURL, f.FileType, f.FileSize, f.StorageKey, data, f.LessonID, f.ModuleID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// UpdateFileURL задает публичную ссылку на файл.
func (s *Storage) UpdateFileURL(ctx context.Context, id int64, url string) error {
	const op = "storage.UpdateFileURL"

	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE course_files SET file_url = $1 WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// ListCourseFiles возвращает файлы, новые первыми.
func (s *Storage) ListCourseFiles(ctx context.Context, filter models.FileFilter) ([]models.CourseFile, error) {
	const op = "storage.ListCourseFiles"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		conds []string
		args  []any
	)
	if filter.LessonID != nil {
		args = append(args, *filter.LessonID)
		conds = append(conds, "lesson_id = $"+strconv.Itoa(len(args)))
	}
	if filter.ModuleID != nil {
		args = append(args, *filter.ModuleID)
		conds = append(conds, "module_id = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + courseFileColumns + ` FROM course_files`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY uploaded_at DESC, id DESC`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	res := make([]models.CourseFile, 0)
	for rows.Next() {
		f, err := scanCourseFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GetCourseFile возвращает метаданные файла.
func (s *Storage) GetCourseFile(ctx context.Context, id int64) (*models.CourseFile, error) {
	const op = "storage.GetCourseFile"

	f, err := scanCourseFile(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+courseFileColumns+` FROM course_files WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// GetCourseFileContent возвращает содержимое файла, хранящегося в базе.
func (s *Storage) GetCourseFileContent(ctx context.Context, id int64) ([]byte, error) {
	const op = "storage.GetCourseFileContent"

	var data []byte
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT file_data FROM course_files WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%s: no content: %w", op, storage.ErrNotFound)
	}
	return data, nil
}

// DeleteCourseFile удаляет запись о файле и возвращает удаленные метаданные.
func (s *Storage) DeleteCourseFile(ctx context.Context, id int64) (*models.CourseFile, error) {
	const op = "storage.DeleteCourseFile"

	f, err := scanCourseFile(s.conn(ctx).QueryRowContext(ctx,
		`DELETE FROM course_files WHERE id = $1 RETURNING `+courseFileColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}
