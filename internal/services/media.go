package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jmoiron/sqlx"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"sac-backend-go/internal/db"
	"sac-backend-go/internal/models"
	"sac-backend-go/internal/storage"
)

const (
	webpFileType    = "webp"
	defaultFileType = "file"
	storageInline   = "inline"

	// CacheControlImmutable is sent with every media response; content under
	// a hash never changes.
	CacheControlImmutable = "max-age=31536000"

	// DefaultMaxImagePixels bounds width*height of images that get decoded.
	DefaultMaxImagePixels = 40_000_000
)

// decodableImages are the sniffed types Transcode will decode; the file name
// decides whether to transcode, the content only has to be some image.
var decodableImages = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp"}

var transcodedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// ContentHash is the hex BLAKE3-256 digest used as the content address.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileExtension returns the text after the last dot, or "file".
func FileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return defaultFileType
	}
	return filename[idx+1:]
}

// ContentTypeFor maps a stored file_type to the Content-Type header value.
func ContentTypeFor(fileType string) string {
	if fileType == webpFileType {
		return "image/webp"
	}
	return fileType
}

// Transcode re-encodes png/jpg/jpeg uploads as lossless WebP. Other
// extensions pass through with the extension as file type. The extension
// match is case-sensitive. Images larger than maxPixels (DefaultMaxImagePixels
// when maxPixels <= 0) are rejected before decoding.
func Transcode(filename string, data []byte, maxPixels int) ([]byte, string, error) {
	ext := FileExtension(filename)
	if !transcodedExtensions[ext] {
		return data, ext, nil
	}
	if !isDecodable(data) {
		return nil, "", ErrInvalidImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Join(ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", ErrInvalidImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Join(ErrInvalidImage, err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, "", errors.Join(ErrWebPEncode, err)
	}
	return buf.Bytes(), webpFileType, nil
}

func isDecodable(data []byte) bool {
	detected := mimetype.Detect(data)
	for _, mime := range decodableImages {
		if detected.Is(mime) {
			return true
		}
	}
	return false
}

// MediaStore is the content-addressed upload store. Bytes live in the upload
// row unless Blobs is set, in which case they are kept under the compressed
// hash in the blob store.
type MediaStore struct {
	DB     *sqlx.DB
	Blobs  storage.BlobStore
	Logger *zap.Logger
	// MaxImagePixels caps decoded image size; zero means DefaultMaxImagePixels.
	MaxImagePixels int
}

func (m *MediaStore) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (m *MediaStore) Store(ctx context.Context, filename string, data []byte) (int64, error) {
	return m.StoreAndBind(ctx, filename, data, nil)
}

// StoreAndBind stores data once per distinct content and, when target is
// set, binds the resulting media to it in the same transaction as the insert.
func (m *MediaStore) StoreAndBind(ctx context.Context, filename string, data []byte, target *Target) (int64, error) {
	originalHash := ContentHash(data)
	id, found, err := m.lookup(ctx, `SELECT id FROM upload WHERE original_hash = $1`, originalHash)
	if err != nil {
		return 0, err
	}
	if found {
		m.logger().Debug("upload deduplicated", zap.String("original_hash", originalHash), zap.Int64("media_id", id))
		return id, m.bindExisting(ctx, id, target)
	}

	compressed, fileType, err := Transcode(filename, data, m.MaxImagePixels)
	if err != nil {
		return 0, err
	}
	compressedHash := originalHash
	if fileType == webpFileType {
		compressedHash = ContentHash(compressed)
	}
	id, found, err = m.lookup(ctx, `SELECT id FROM upload WHERE compressed_hash = $1`, compressedHash)
	if err != nil {
		return 0, err
	}
	if found {
		return id, m.bindExisting(ctx, id, target)
	}

	blob, storageName := compressed, storageInline
	if m.Blobs != nil {
		if err := m.Blobs.Put(ctx, compressedHash, compressed, ContentTypeFor(fileType)); err != nil {
			return 0, WrapError(err, "put blob")
		}
		blob, storageName = nil, m.Blobs.Name()
	}

	err = db.WithTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &id, `
INSERT INTO upload (file_type, blob, storage, original_hash, compressed_hash)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING
RETURNING id
`, fileType, blob, storageName, originalHash, compressedHash)
		if errors.Is(err, sql.ErrNoRows) {
			err = tx.GetContext(ctx, &id, `
SELECT id FROM upload
WHERE original_hash = $1 OR compressed_hash = $2
ORDER BY id
LIMIT 1
`, originalHash, compressedHash)
		}
		if err != nil {
			return WrapError(err, "insert upload")
		}
		if target == nil {
			return nil
		}
		return Bind(ctx, tx, id, *target)
	})
	if err != nil {
		return 0, err
	}
	m.logger().Info("upload stored",
		zap.Int64("media_id", id),
		zap.String("file_type", fileType),
		zap.String("compressed_hash", compressedHash),
		zap.Int("original_bytes", len(data)),
		zap.Int("stored_bytes", len(compressed)))
	return id, nil
}

// Fetch returns the stored bytes and file type for a compressed hash.
func (m *MediaStore) Fetch(ctx context.Context, hash string) ([]byte, string, error) {
	row := models.Upload{}
	err := m.DB.GetContext(ctx, &row, `
SELECT id, file_type, blob, storage, original_hash, compressed_hash
FROM upload
WHERE compressed_hash = $1
`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrMediaNotFound
	}
	if err != nil {
		return nil, "", WrapError(err, "load upload")
	}
	if row.Storage == storageInline {
		return row.Blob, row.FileType, nil
	}
	if m.Blobs == nil || m.Blobs.Name() != row.Storage {
		return nil, "", errors.New("upload " + hash + " is kept in " + row.Storage + " which is not configured")
	}
	data, err := m.Blobs.Get(ctx, hash)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, "", ErrMediaNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, row.FileType, nil
}

func (m *MediaStore) lookup(ctx context.Context, query, hash string) (int64, bool, error) {
	var id int64
	err := m.DB.GetContext(ctx, &id, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, WrapError(err, "lookup upload")
	}
	return id, true, nil
}

func (m *MediaStore) bindExisting(ctx context.Context, id int64, target *Target) error {
	if target == nil {
		return nil
	}
	return db.WithTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		return Bind(ctx, tx, id, *target)
	})
}
