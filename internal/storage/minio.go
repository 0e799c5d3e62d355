package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/victorivanov/huddle/internal/models"
)

// MinIOClient wraps a MinIO client with bucket-scoped operations. huddle
// uses it to archive conversation history before a purge.
type MinIOClient struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinIOClient creates a MinIO client and ensures the bucket exists.
func NewMinIOClient(ctx context.Context, endpoint, accessKey, secretKey, bucket string, secure bool) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinIOClient{client: client, bucket: bucket, now: time.Now}, nil
}

// archivedMessage is the archive's record format. It keeps the ids the
// live views render as strings as plain numbers.
type archivedMessage struct {
	ID        int64             `json:"id"`
	AuthorID  int64             `json:"author_id"`
	Body      string            `json:"body"`
	SentAt    time.Time         `json:"sent_at"`
	Pinned    bool              `json:"pinned"`
	Reactions []models.Reaction `json:"reactions,omitempty"`
}

type archive struct {
	Conversation models.ConversationRef `json:"conversation"`
	ArchivedAt   time.Time              `json:"archived_at"`
	Messages     []archivedMessage      `json:"messages"`
}

// ArchiveKey is the object key of an archive taken at t.
func ArchiveKey(ref models.ConversationRef, t time.Time) string {
	return fmt.Sprintf("archive/%s/%d/%d.json", ref.Kind, ref.ID, t.UnixMilli())
}

// EncodeArchive renders msgs, most recent first, as one JSON document.
func EncodeArchive(ref models.ConversationRef, msgs []*models.Message, at time.Time) ([]byte, error) {
	doc := archive{Conversation: ref, ArchivedAt: at.UTC(), Messages: make([]archivedMessage, 0, len(msgs))}
	for _, m := range msgs {
		doc.Messages = append(doc.Messages, archivedMessage{
			ID:        m.ID,
			AuthorID:  m.AuthorID,
			Body:      m.Body,
			SentAt:    m.SentAt.UTC(),
			Pinned:    m.Pinned,
			Reactions: m.Reactions,
		})
	}
	return json.Marshal(doc)
}

// Archive uploads msgs as a single object under ArchiveKey.
func (m *MinIOClient) Archive(ctx context.Context, ref models.ConversationRef, msgs []*models.Message) error {
	at := m.now()
	data, err := EncodeArchive(ref, msgs, at)
	if err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}
	_, err = m.client.PutObject(ctx, m.bucket, ArchiveKey(ref, at), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

// Delete removes an object from the bucket.
func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
