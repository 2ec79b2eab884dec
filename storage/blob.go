// Package storage persists downloaded media to blob storage
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore stores media files in a MongoDB GridFS bucket
type GridFSStore struct {
	bucket *gridfs.Bucket
	name   string
	log    *logrus.Logger
}

// NewGridFSStore opens bucketName on database
func NewGridFSStore(database *mongo.Database, bucketName string, log *logrus.Logger) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", bucketName, err)
	}
	return &GridFSStore{bucket: bucket, name: bucketName, log: log}, nil
}

// Upload writes data under name and returns a gridfs:// URI addressing it
func (s *GridFSStore) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	id, err := s.bucket.UploadFromStream(name, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	uri := fmt.Sprintf("gridfs://%s/%s", s.name, id.Hex())
	s.log.WithFields(logrus.Fields{"file": name, "uri": uri, "bytes": len(data)}).Debug("Uploaded media")
	return uri, nil
}
