package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/segmentio/kafka-go"

	"fitsync-api-go/internal/ingest"
)

// MinioArchive stores raw webhook bodies in object storage.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

func NewMinioArchive(client *minio.Client, bucket string) *MinioArchive {
	return &MinioArchive{client: client, bucket: bucket}
}

func (a *MinioArchive) Archive(ctx context.Context, key string, body []byte) (ingest.WorkoutIngestedV1Raw, error) {
	reader := bytes.NewReader(body)
	_, err := a.client.PutObject(ctx, a.bucket, key, reader, int64(reader.Len()),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return ingest.WorkoutIngestedV1Raw{}, err
	}

	sha := sha256.Sum256(body)
	return ingest.WorkoutIngestedV1Raw{
		Bucket:    a.bucket,
		Key:       key,
		SHA256:    hex.EncodeToString(sha[:]),
		SizeBytes: int64(len(body)),
	}, nil
}

// KafkaPublisher emits events on the writer's configured topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte, at time.Time) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  at,
	})
}
