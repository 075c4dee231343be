// Package report records compaction runs.
//
// A [Record] summarizes one run: what was read, what was written and how
// much smaller the document got. Records go to a [Sink]: a JSON lines file
// ([FileSink]), any writer ([WriterSink]), or a MongoDB collection
// ([MongoSink]). [Multi] fans a record out to several sinks.
package report

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/sb3min/pkg/pipeline"
)

// Record is one compaction run.
type Record struct {
	ID   string    `json:"id" bson:"_id"`
	Time time.Time `json:"time" bson:"time"`

	Source      string `json:"source" bson:"source"`
	Destination string `json:"destination,omitempty" bson:"destination,omitempty"`
	Kind        string `json:"kind" bson:"kind"`

	Options pipeline.Options `json:"options" bson:"options"`

	Identifiers     int   `json:"identifiers" bson:"identifiers"`
	Sites           int   `json:"sites" bson:"sites"`
	MonitorsRemoved int   `json:"monitors_removed" bson:"monitors_removed"`
	InputBytes      int64 `json:"input_bytes" bson:"input_bytes"`
	OutputBytes     int64 `json:"output_bytes" bson:"output_bytes"`
	InputJSONBytes  int   `json:"input_json_bytes" bson:"input_json_bytes"`
	OutputJSONBytes int   `json:"output_json_bytes" bson:"output_json_bytes"`
	Cached          bool  `json:"cached" bson:"cached"`

	DurationMS int64 `json:"duration_ms" bson:"duration_ms"`
}

// NewRecord builds a record from a finished run.
func NewRecord(source string, opts pipeline.Options, res *pipeline.Result) Record {
	opts.Logger = nil
	rec := Record{
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		Source:          source,
		Destination:     res.Output.Path,
		Options:         opts,
		Identifiers:     res.Stats.Identifiers,
		Sites:           res.Stats.Sites,
		MonitorsRemoved: res.Monitors.Removed,
		InputBytes:      res.Stats.InputBytes,
		OutputBytes:     res.Stats.OutputBytes,
		InputJSONBytes:  res.Stats.InputJSONBytes,
		OutputJSONBytes: res.Stats.OutputJSONBytes,
		Cached:          res.CacheInfo.ResultHit,
	}
	if res.Project != nil {
		rec.Kind = res.Project.Kind.String()
	}
	d := res.Stats.LoadTime + res.Stats.RenameTime + res.Stats.SaveTime
	rec.DurationMS = d.Milliseconds()
	return rec
}

// Sink receives records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

type multi []Sink

// Multi returns a sink that writes every record to all sinks.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
