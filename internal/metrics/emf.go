// Package metrics writes CloudWatch Embedded Metric Format (EMF) documents.
// Each document is one JSON line; CloudWatch Logs extracts the metrics from
// the Lambda log stream.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// Namespace is the CloudWatch namespace for Graph call metrics.
const Namespace = "SocialGraphBridge"

// CloudWatch units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitNone         = "None"
)

// FunctionNameEnvVar names the Lambda function; when set it becomes the
// FunctionName dimension of every document.
const FunctionNameEnvVar = "AWS_LAMBDA_FUNCTION_NAME"

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type directive struct {
	Timestamp         int64       `json:"Timestamp"`
	CloudWatchMetrics []metricSet `json:"CloudWatchMetrics"`
}

type metricSet struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

type sample struct {
	def   metricDef
	value float64
}

// Recorder builds one EMF document. Metrics keep the order they were first
// recorded in; recording a name again replaces its value.
type Recorder struct {
	namespace  string
	out        io.Writer
	now        func() time.Time
	dimensions map[string]string
	samples    []sample
	properties map[string]any
}

// New creates a Recorder that flushes to stdout.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		out:        os.Stdout,
		now:        time.Now,
		dimensions: map[string]string{},
		properties: map[string]any{},
	}
	if fn := os.Getenv(FunctionNameEnvVar); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// WithWriter redirects Flush.
func (r *Recorder) WithWriter(w io.Writer) *Recorder {
	r.out = w
	return r
}

// Dimension adds an indexed dimension.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records value under name.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	for i := range r.samples {
		if r.samples[i].def.Name == name {
			r.samples[i] = sample{metricDef{name, unit}, value}
			return r
		}
	}
	r.samples = append(r.samples, sample{metricDef{name, unit}, value})
	return r
}

// Count records 1 under name.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Document returns the EMF document as a JSON object, or nil when no metric
// was recorded.
func (r *Recorder) Document() map[string]any {
	if len(r.samples) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	set := metricSet{Namespace: r.namespace, Dimensions: [][]string{keys}}
	doc := make(map[string]any, 1+len(r.properties)+len(r.dimensions)+len(r.samples))
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for _, s := range r.samples {
		set.Metrics = append(set.Metrics, s.def)
		doc[s.def.Name] = s.value
	}
	doc["_aws"] = directive{
		Timestamp:         r.now().UnixMilli(),
		CloudWatchMetrics: []metricSet{set},
	}
	return doc
}

// Flush writes the document as a single line. Nothing is written when no
// metric was recorded.
func (r *Recorder) Flush() {
	doc := r.Document()
	if doc == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode EMF document")
		return
	}
	data = append(data, '\n')
	if _, err := r.out.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write EMF document")
	}
}
