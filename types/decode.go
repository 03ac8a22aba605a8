package types

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Positional tuple layout:
// [lat, lng, address, _, _, _, routeId, timestamp, _, flag, provider?]
const (
	tupleLat      = "0"
	tupleLng      = "1"
	tupleAddress  = "2"
	tupleRouteID  = "6"
	tupleTime     = "7"
	tupleFlag     = "9"
	tupleProvider = "10"
)

// ScanJSONMessages reads a stream of JSON messages from an io.Reader,
// and calls onEach for each decoded message.
// If the stream is encoded as a JSON array of arrays or objects, this function will
// call onEach for each element in the array. A stream that starts with a bare tuple
// is newline-delimited tuples, and each tuple is one message.
// An envelope object is a single message; use RecordsOf to reach its 'data'.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	first, second, err := leadingDelims(buf)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(buf)
	if first == '[' && (second == '[' || second == '{' || second == ']') {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	for dec.More() {
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode err: %T %w", err, err)
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}

// leadingDelims returns the first two non-space bytes of the stream without consuming them.
func leadingDelims(buf *bufio.Reader) (first, second byte, err error) {
	peek, _ := buf.Peek(512)
	found := make([]byte, 0, 2)
	for _, b := range peek {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		found = append(found, b)
		if len(found) == 2 {
			break
		}
	}
	switch len(found) {
	case 0:
		return 0, 0, io.EOF
	case 1:
		return found[0], 0, nil
	}
	return found[0], found[1], nil
}

// RecordsOf returns the records held by a parsed JSON value:
// the elements of an array, or the 'data' array of an envelope object.
func RecordsOf(parsed gjson.Result) ([]gjson.Result, error) {
	if parsed.IsArray() {
		return parsed.Array(), nil
	}
	if parsed.IsObject() {
		if data := parsed.Get("data"); data.IsArray() {
			return data.Array(), nil
		}
	}
	return nil, ErrUnknownShape
}

// IsTuple reports whether rec is a positional record.
func IsTuple(rec gjson.Result) bool {
	return rec.IsArray()
}

// DecodeRecord normalizes one raw record, either a positional tuple or a keyed object.
// The index is the record's 0-based position in its batch; the point's ID is index+1.
// A nil point with a *ValidationError means the record is dropped.
// A *ParseError alongside a point means its timestamp was passed through raw.
func DecodeRecord(rec gjson.Result, index int, now time.Time) (*locpoint.LocationPoint, *ParseError, *ValidationError) {
	var lat, lng, address, routeID, ts, flag, provider gjson.Result
	switch {
	case rec.IsArray():
		lat, lng = rec.Get(tupleLat), rec.Get(tupleLng)
		address = rec.Get(tupleAddress)
		routeID = rec.Get(tupleRouteID)
		ts = rec.Get(tupleTime)
		flag = rec.Get(tupleFlag)
		provider = rec.Get(tupleProvider)
	case rec.IsObject():
		lat = firstOf(rec, "lat", "latitude")
		lng = firstOf(rec, "lng", "lon", "long", "longitude")
		address = rec.Get("address")
		routeID = firstOf(rec, "routeId", "route_id", "routeID")
		ts = firstOf(rec, "timestamp", "time")
		flag = rec.Get("flag")
		provider = firstOf(rec, "locationProvider", "provider")
	default:
		return nil, nil, &ValidationError{Index: index, Reason: "record is neither a tuple nor an object"}
	}

	latF, ok := coordinate(lat)
	if !ok {
		return nil, nil, &ValidationError{Index: index, Field: "lat", Value: lat.Raw, Reason: "not a finite number"}
	}
	lngF, ok := coordinate(lng)
	if !ok {
		return nil, nil, &ValidationError{Index: index, Field: "lng", Value: lng.Raw, Reason: "not a finite number"}
	}
	if !common.ValidLatLng(latF, lngF) {
		return nil, nil, &ValidationError{Index: index, Field: "lat/lng",
			Value: fmt.Sprintf("%v,%v", latF, lngF), Reason: "out of range"}
	}

	p := &locpoint.LocationPoint{
		ID:               index + 1,
		Lat:              latF,
		Lng:              lngF,
		Address:          scalarString(address),
		RouteID:          conceptual.RouteID(scalarString(routeID)).OrDefault(),
		Flag:             locpoint.ParseFlag(scalarString(flag)),
		LocationProvider: scalarString(provider),
	}

	var perr *ParseError
	var err error
	p.Timestamp, err = ParseTimestamp(ts.Value(), now)
	if err != nil {
		perr = &ParseError{Index: index, Value: p.Timestamp}
	}
	return p, perr, nil
}

func firstOf(rec gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := rec.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// coordinate accepts JSON numbers and numeric strings.
func coordinate(r gjson.Result) (float64, bool) {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	return f, !math.IsNaN(f) && !math.IsInf(f, 0)
}

// scalarString returns strings and numbers as text; everything else is empty.
func scalarString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	}
	return ""
}
