package metrics

import (
	"time"

	obserrors "github.com/linguavox/linguavox/internal/observability/errors"
	"github.com/linguavox/linguavox/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// UploadMetric captures details about an upload lifecycle event for metric emission.
type UploadMetric struct {
	Stage    string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitUploadLifecycle emits standardised upload lifecycle metrics.
func EmitUploadLifecycle(sink statsd.Sink, in UploadMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":  in.Stage,
		"result": in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("upload.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("upload.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
