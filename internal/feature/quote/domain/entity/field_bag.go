package entity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// SourceKind classifies what a provider exposes. Fallback chains refer to
// source kinds rather than to concrete providers.
type SourceKind string

const (
	// SourceSnapshot is a lightweight current/last price snapshot.
	SourceSnapshot SourceKind = "snapshot"
	// SourceFull is a full quote document.
	SourceFull SourceKind = "full"
	// SourceSeries is the latest row(s) of a time series.
	SourceSeries SourceKind = "series"
)

// RawFieldBag holds the provider-specific fields returned by one fetch.
// It is never mutated after the adapter returns it.
type RawFieldBag struct {
	Provider string
	Source   SourceKind
	Fields   map[string]any
}

// NewRawFieldBag builds a bag, dropping nil values.
func NewRawFieldBag(provider string, source SourceKind, fields map[string]any) RawFieldBag {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			out[k] = v
		}
	}
	return RawFieldBag{Provider: provider, Source: source, Fields: out}
}

// Empty reports whether the bag carries no fields.
func (b RawFieldBag) Empty() bool { return len(b.Fields) == 0 }

// Float returns the field as a finite float64.
// Numeric strings are parsed; NaN, Inf, empty strings and unknown types are
// reported as absent.
func (b RawFieldBag) Float(key string) (float64, bool) {
	v, ok := b.Fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RawTimestamp is a data-point timestamp as a provider reported it.
// HasZone is false for naive wall-clock values.
type RawTimestamp struct {
	Time    time.Time
	HasZone bool
}

// naiveLayouts are the wall-clock formats providers use without an offset.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp returns the field as a raw timestamp.
// Integers are unix seconds (zoned). time.Time values keep their zone.
// Strings are tried as RFC 3339 (zoned) and then as naive layouts.
func (b RawFieldBag) Timestamp(key string) (RawTimestamp, bool) {
	v, ok := b.Fields[key]
	if !ok {
		return RawTimestamp{}, false
	}
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return RawTimestamp{}, false
		}
		return RawTimestamp{Time: x, HasZone: true}, true
	case int64:
		return unixStamp(x)
	case int:
		return unixStamp(int64(x))
	case float64:
		return unixStamp(int64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return RawTimestamp{}, false
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return RawTimestamp{Time: t, HasZone: true}, true
		}
		for _, layout := range naiveLayouts {
			// time.Parse yields UTC for layouts without zone information.
			if t, err := time.Parse(layout, s); err == nil {
				return RawTimestamp{Time: t, HasZone: false}, true
			}
		}
	}
	return RawTimestamp{}, false
}

func unixStamp(sec int64) (RawTimestamp, bool) {
	if sec <= 0 {
		return RawTimestamp{}, false
	}
	return RawTimestamp{Time: time.Unix(sec, 0).UTC(), HasZone: true}, true
}
