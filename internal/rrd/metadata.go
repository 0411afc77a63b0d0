package rrd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPayload reports a structurally malformed metadata blob. The
// blob is rejected atomically; there is no partial recovery.
var ErrInvalidPayload = errors.New("invalid payload")

func invalidPayload(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// metadataDoc is the per-datasource mapping inside the "datasources"
// object. The producer writes every field as a JSON string; booleans and
// numbers are additionally accepted in their native encodings.
type metadataDoc struct {
	Description string          `json:"description"`
	Units       string          `json:"units"`
	Type        string          `json:"type"`
	ValueType   string          `json:"value_type"`
	Min         json.RawMessage `json:"min"`
	Max         json.RawMessage `json:"max"`
	Owner       string          `json:"owner"`
	Default     json.RawMessage `json:"default"`
}

// ParseMetadata decodes the metadata blob into sources in declaration
// order. Values carry the declared kind with a zero payload; the reader
// attaches real measurements afterwards. Any structural mismatch or
// unrecognized enumerated value rejects the whole blob with
// ErrInvalidPayload.
func ParseMetadata(data []byte) ([]Source, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var sources []Source
	seenDatasources := false
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if key != "datasources" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, invalidPayload("key %q: %v", key, err)
			}
			continue
		}
		seenDatasources = true
		sources, err = parseDatasources(dec)
		if err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if !seenDatasources {
		return nil, invalidPayload("missing datasources mapping")
	}
	return sources, nil
}

// parseDatasources walks the "datasources" object with the token decoder
// so the declaration order of the keys is preserved; decoding into a Go
// map would lose it.
func parseDatasources(dec *json.Decoder) ([]Source, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var sources []Source
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var doc metadataDoc
		if err := dec.Decode(&doc); err != nil {
			return nil, invalidPayload("datasource %q: %v", name, err)
		}
		src, err := buildSource(name, doc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return sources, nil
}

func buildSource(name string, doc metadataDoc) (Source, error) {
	var src Source
	src.Name = name
	src.Description = doc.Description
	src.Units = doc.Units

	switch strings.ToLower(doc.Type) {
	case "", "absolute":
		src.Type = Absolute
	case "gauge":
		src.Type = Gauge
	case "derive":
		src.Type = Derive
	default:
		return src, invalidPayload("datasource %q: unknown type %q", name, doc.Type)
	}

	switch strings.ToLower(doc.ValueType) {
	case "float":
		src.Value = Value{Kind: KindFloat}
	case "int64":
		src.Value = Value{Kind: KindInt64}
	default:
		return src, invalidPayload("datasource %q: unknown value_type %q", name, doc.ValueType)
	}

	min, err := floatField(doc.Min, "-infinity")
	if err != nil {
		return src, invalidPayload("datasource %q: min: %v", name, err)
	}
	src.Min = min
	max, err := floatField(doc.Max, "infinity")
	if err != nil {
		return src, invalidPayload("datasource %q: max: %v", name, err)
	}
	src.Max = max

	ownerText := doc.Owner
	if strings.TrimSpace(ownerText) == "" {
		ownerText = "host"
	}
	owner, err := ParseOwner(ownerText)
	if err != nil {
		return src, invalidPayload("datasource %q: %v", name, err)
	}
	src.Owner = owner

	dflt, err := boolField(doc.Default, false)
	if err != nil {
		return src, invalidPayload("datasource %q: default: %v", name, err)
	}
	src.Default = dflt
	return src, nil
}

// floatField parses a bound that the producer encodes as a string like
// "-inf" or "1000"; JSON numbers are accepted too. ParseFloat understands
// the "inf"/"infinity" spellings case-insensitively.
func floatField(raw json.RawMessage, def string) (float64, error) {
	text := def
	if len(raw) > 0 {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			text = s
		} else {
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return 0, fmt.Errorf("not a number: %s", raw)
			}
			return f, nil
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	return f, nil
}

func boolField(raw json.RawMessage, def bool) (bool, error) {
	if len(raw) == 0 {
		return def, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", s)
		}
		return b, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("not a boolean: %s", raw)
	}
	return b, nil
}

func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return invalidPayload("%v", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || rune(delim) != want {
		return invalidPayload("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", invalidPayload("%v", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", invalidPayload("expected object key, got %v", tok)
	}
	return s, nil
}
