package report

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/sb3min/pkg/errors"
)

// WriterSink writes records as JSON lines.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
}

// NewWriterSink writes records to w. Close does not close w.
func NewWriterSink(w io.Writer) *WriterSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &WriterSink{enc: enc}
}

// NewFileSink appends records to the file at path, creating it if needed.
func NewFileSink(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open report file %q", path)
	}
	s := NewWriterSink(f)
	s.c = f
	return s, nil
}

// Write encodes rec as one line.
func (s *WriterSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(rec)
}

// Close closes the underlying file, if the sink owns one.
func (s *WriterSink) Close(context.Context) error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// Collection is the MongoDB collection records are inserted into.
const Collection = "runs"

// MongoSink inserts records into a MongoDB collection.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to uri and verifies the connection.
func NewMongoSink(ctx context.Context, uri, database string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "ping mongodb")
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(database).Collection(Collection),
	}, nil
}

// Write inserts rec.
func (s *MongoSink) Write(ctx context.Context, rec Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "insert report %s", rec.ID)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
