package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"gorm.io/gorm"
)

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// FileUpload is an incoming file
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// FileService stores files in bucket directories under StorageDir and keeps
// their metadata in the database
type FileService struct {
	DB           *gorm.DB
	StorageDir   string
	MaxFileSize  int64
	AllowedTypes []string
}

// ValidateUpload checks the declared size and type of an upload
func ValidateUpload(up FileUpload, maxSize int64, allowed []string) error {
	if up.Size <= 0 {
		return types.NewFileError("file is empty")
	}
	if maxSize > 0 && up.Size > maxSize {
		return types.NewFileError(fmt.Sprintf("file size %d exceeds the maximum of %d bytes", up.Size, maxSize))
	}
	if len(allowed) > 0 && !slices.Contains(allowed, baseMediaType(up.ContentType)) {
		return types.NewFileError(fmt.Sprintf("file type '%s' is not allowed", up.ContentType))
	}
	return nil
}

// sniffUpload detects the real media type from the first bytes and returns a
// reader that still yields the whole content
func sniffUpload(up FileUpload) (string, io.Reader, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(up.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	detected := mimetype.Detect(head).String()
	return baseMediaType(detected), io.MultiReader(bytes.NewReader(head), up.Content), nil
}

func baseMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

func checkBucket(bucket string) error {
	if !bucketPattern.MatchString(bucket) {
		return types.NewFileError(fmt.Sprintf("invalid bucket name '%s'", bucket))
	}
	return nil
}

// Upload validates and stores a file
func (s *FileService) Upload(ctx context.Context, bucket string, up FileUpload) (*models.StoredFile, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}
	if err := ValidateUpload(up, s.MaxFileSize, s.AllowedTypes); err != nil {
		return nil, err
	}

	detected, content, err := sniffUpload(up)
	if err != nil {
		return nil, err
	}
	if len(s.AllowedTypes) > 0 && !slices.Contains(s.AllowedTypes, detected) {
		return nil, types.NewFileError(fmt.Sprintf("file content '%s' is not an allowed type", detected))
	}

	dir := filepath.Join(s.StorageDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}

	file := &models.StoredFile{
		ID:       uuid.NewString(),
		Bucket:   bucket,
		Name:     filepath.Base(up.Name),
		MimeType: detected,
	}
	file.Path = filepath.Join(bucket, file.ID)

	size, err := writeFile(filepath.Join(s.StorageDir, file.Path), content, s.MaxFileSize)
	if err != nil {
		return nil, err
	}
	file.Size = size

	if err := s.DB.WithContext(ctx).Create(file).Error; err != nil {
		_ = os.Remove(filepath.Join(s.StorageDir, file.Path))
		return nil, fmt.Errorf("store file metadata: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("bucket", bucket).
		Str("file", file.ID).
		Str("mime", file.MimeType).
		Int64("size", file.Size).
		Msg("File stored")
	return file, nil
}

// writeFile copies content to path, failing once more than maxSize bytes arrive
func writeFile(path string, content io.Reader, maxSize int64) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	reader := content
	if maxSize > 0 {
		reader = io.LimitReader(content, maxSize+1)
	}
	n, err := io.Copy(out, reader)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if maxSize > 0 && n > maxSize {
		_ = os.Remove(path)
		return 0, types.NewFileError(fmt.Sprintf("file exceeds the maximum of %d bytes", maxSize))
	}
	return n, nil
}

// List returns the files of a bucket, newest first
func (s *FileService) List(ctx context.Context, bucket string, limit, offset int) ([]models.StoredFile, int64, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, 0, err
	}
	scope := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&models.StoredFile{}).Where("bucket = ?", bucket)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}
	var files []models.StoredFile
	if err := scope().Order("created_at DESC").Limit(limit).Offset(offset).Find(&files).Error; err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}
	return files, total, nil
}

// Get loads the metadata of one file
func (s *FileService) Get(ctx context.Context, bucket, id string) (*models.StoredFile, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}
	var file models.StoredFile
	err := s.DB.WithContext(ctx).Where("bucket = ? AND id = ?", bucket, id).First(&file).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, types.NotFound(fmt.Sprintf("File '%s' not found in bucket '%s'", id, bucket))
		}
		return nil, fmt.Errorf("find file %s: %w", id, err)
	}
	return &file, nil
}

// LocalPath returns where the content of file lives on disk
func (s *FileService) LocalPath(file *models.StoredFile) string {
	return filepath.Join(s.StorageDir, file.Path)
}

// Delete removes the metadata and the content of a file
func (s *FileService) Delete(ctx context.Context, bucket, id string) error {
	file, err := s.Get(ctx, bucket, id)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(file).Error; err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	if err := os.Remove(s.LocalPath(file)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Ctx(ctx).Warn().Err(err).Str("file", id).Msg("Failed to remove file content")
	}
	return nil
}
