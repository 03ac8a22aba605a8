package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"io"
	"time"
)

// Normalized is the outcome of normalizing a batch of raw records.
// Points keeps input order; dropped records leave no hole in IDs
// because IDs come from input positions.
type Normalized struct {
	Points   []locpoint.LocationPoint
	Dropped  []*ValidationError
	Unparsed []*ParseError
}

// Err joins every per-record error, or returns nil.
func (n *Normalized) Err() error {
	errs := make([]error, 0, len(n.Dropped)+len(n.Unparsed))
	for _, e := range n.Dropped {
		errs = append(errs, e)
	}
	for _, e := range n.Unparsed {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func (n *Normalized) add(rec gjson.Result, index int, now time.Time) {
	p, perr, verr := DecodeRecord(rec, index, now)
	if verr != nil {
		n.Dropped = append(n.Dropped, verr)
		return
	}
	if perr != nil {
		n.Unparsed = append(n.Unparsed, perr)
	}
	n.Points = append(n.Points, *p)
}

// Normalize decodes a JSON array of records, or an envelope object with a 'data' array,
// into LocationPoints. Records are normalized independently:
// a malformed record is dropped and reported, never fatal to the batch.
// Only input of an unknown shape is an error.
func Normalize(data []byte, now time.Time) (*Normalized, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrUnknownShape)
	}
	records, err := RecordsOf(gjson.ParseBytes(data))
	if err != nil {
		return nil, err
	}
	n := &Normalized{Points: make([]locpoint.LocationPoint, 0, len(records))}
	for i, rec := range records {
		n.add(rec, i, now)
	}
	return n, nil
}

// NormalizeReader is like Normalize but also accepts newline-delimited records,
// where each message may be a single record, an array of records, or an envelope.
func NormalizeReader(r io.Reader, now time.Time) (*Normalized, error) {
	n := &Normalized{}
	index := 0
	err := ScanJSONMessages(r, func(msg json.RawMessage) error {
		parsed := gjson.ParseBytes(msg)
		for _, rec := range expand(parsed) {
			n.add(rec, index, now)
			index++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// expand unwraps a scanned message into its records.
func expand(msg gjson.Result) []gjson.Result {
	if msg.IsObject() {
		if data := msg.Get("data"); data.IsArray() {
			return data.Array()
		}
		return []gjson.Result{msg}
	}
	if msg.IsArray() {
		first := msg.Get("0")
		if first.IsArray() || first.IsObject() {
			return msg.Array()
		}
	}
	return []gjson.Result{msg}
}
