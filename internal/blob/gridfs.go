package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps blobs in a MongoDB GridFS bucket.
type GridFSStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

func NewGridFSStore(ctx context.Context, uri, dbName string) (*GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(dbName))
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}

	return &GridFSStore{client: client, bucket: bucket}, nil
}

func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *GridFSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if dl, ok := ctx.Deadline(); ok {
		s.bucket.SetWriteDeadline(dl)
	}

	id, err := s.bucket.UploadFromStream(name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gridfs upload: %w", err)
	}

	return id.Hex(), nil
}

func (s *GridFSStore) Get(ctx context.Context, id string) ([]byte, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	if dl, ok := ctx.Deadline(); ok {
		s.bucket.SetReadDeadline(dl)
	}

	var buf bytes.Buffer
	if _, err := s.bucket.DownloadToStream(objId, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gridfs download: %w", err)
	}

	return buf.Bytes(), nil
}
