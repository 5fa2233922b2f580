package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gochat/internal/common"
)

// PathPrefix is the server-relative prefix messages use to reference a file.
const PathPrefix = "/media/"

// ErrMediaNotFound reports a file that is not (or no longer) in the bucket.
var ErrMediaNotFound = errors.New("media file not found")

type MediaFile struct {
	ID         string               `json:"id"`          // GridFS ObjectID
	Filename   string               `json:"filename"`    // Original filename
	Size       int64                `json:"size"`        // File size in bytes
	FileType   common.MediaFileType `json:"file_type"`   // always image for now
	MimeType   string               `json:"mime_type"`   // as sent by the uploader
	UploadedBy string               `json:"uploaded_by"` // User ID who uploaded
	UploadedAt time.Time            `json:"uploaded_at"` // Upload timestamp
}

// Path is the reference stored on a message.
func (f *MediaFile) Path() string {
	return PathPrefix + f.ID
}

// ParseMediaPath extracts the GridFS id from "/media/<hex>".
func ParseMediaPath(path string) (primitive.ObjectID, error) {
	if !strings.HasPrefix(path, PathPrefix) {
		return primitive.NilObjectID, fmt.Errorf("%q is not a media path: %w", path, ErrMediaNotFound)
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimPrefix(path, PathPrefix))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid file ID in %q: %w", path, ErrMediaNotFound)
	}
	return id, nil
}

// fileBucket is the part of a GridFS bucket the storage needs.
type fileBucket interface {
	upload(ctx context.Context, filename string, metadata bson.M, r io.Reader) (primitive.ObjectID, int64, error)
	open(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, *gridfs.File, error)
	remove(ctx context.Context, id primitive.ObjectID) error
}

type MediaStorage struct {
	bucket fileBucket
	now    func() time.Time
}

func NewMediaStorage(mongoClient *MongoClient) *MediaStorage {
	return &MediaStorage{
		bucket: &gridfsBucket{bucket: mongoClient.GridFS},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UploadFile stores an image attachment. Other MIME types are rejected.
func (ms *MediaStorage) UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*MediaFile, error) {
	fileType, ok := common.DetectFileType(mimeType)
	if !ok {
		return nil, common.Validationf("unsupported media type %q", mimeType)
	}

	uploadedAt := ms.now()
	metadata := bson.M{
		"file_type":   fileType.String(),
		"mime_type":   mimeType,
		"uploaded_by": uploaderID,
		"uploaded_at": uploadedAt,
	}

	id, size, err := ms.bucket.upload(ctx, filename, metadata, content)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	return &MediaFile{
		ID:         id.Hex(),
		Filename:   filename,
		Size:       size,
		FileType:   fileType,
		MimeType:   mimeType,
		UploadedBy: uploaderID,
		UploadedAt: uploadedAt,
	}, nil
}

// DownloadFile opens a stored file. The caller closes the returned reader.
func (ms *MediaStorage) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *MediaFile, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid file ID: %w", ErrMediaNotFound)
	}

	stream, fileInfo, err := ms.bucket.open(ctx, objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", fileID, err)
	}

	var metadata bson.M
	if fileInfo.Metadata != nil {
		_ = bson.Unmarshal(fileInfo.Metadata, &metadata)
	}

	mediaFile := &MediaFile{
		ID:         fileID,
		Filename:   fileInfo.Name,
		Size:       fileInfo.Length,
		FileType:   common.MediaFileType(getStringFromMap(metadata, "file_type")),
		MimeType:   getStringFromMap(metadata, "mime_type"),
		UploadedBy: getStringFromMap(metadata, "uploaded_by"),
		UploadedAt: fileInfo.UploadDate,
	}

	return stream, mediaFile, nil
}

// DeleteFile removes a file by its hex id.
func (ms *MediaStorage) DeleteFile(ctx context.Context, fileID string) error {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return fmt.Errorf("invalid file ID: %w", ErrMediaNotFound)
	}
	return ms.bucket.remove(ctx, objectID)
}

// RemoveMedia deletes the file a message path points at.
func (ms *MediaStorage) RemoveMedia(ctx context.Context, path string) error {
	objectID, err := ParseMediaPath(path)
	if err != nil {
		return err
	}
	return ms.DeleteFile(ctx, objectID.Hex())
}

func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

type gridfsBucket struct {
	bucket *gridfs.Bucket
}

func (g *gridfsBucket) upload(ctx context.Context, filename string, metadata bson.M, r io.Reader) (primitive.ObjectID, int64, error) {
	stream, err := g.bucket.OpenUploadStream(filename, options.GridFSUpload().SetMetadata(metadata))
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	size, err := io.Copy(stream, r)
	if err != nil {
		_ = stream.Abort()
		return primitive.NilObjectID, 0, fmt.Errorf("file copy failed: %w", err)
	}
	if err := stream.Close(); err != nil {
		return primitive.NilObjectID, 0, err
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, 0, fmt.Errorf("unexpected file id type %T", stream.FileID)
	}
	return id, size, nil
}

func (g *gridfsBucket) open(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, *gridfs.File, error) {
	stream, err := g.bucket.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}
	return stream, stream.GetFile(), nil
}

func (g *gridfsBucket) remove(ctx context.Context, id primitive.ObjectID) error {
	err := g.bucket.DeleteContext(ctx, id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return ErrMediaNotFound
	}
	return err
}
