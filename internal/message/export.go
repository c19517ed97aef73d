package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Serialize renders entries as an indented JSON array. createdAt is written as
// an RFC 3339 timestamp with nanoseconds.
func Serialize(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("message: serialize log: %w", err)
	}
	return raw, nil
}

// Deserialize parses the output of Serialize. Payload numbers are kept as
// json.Number so a round trip is lossless.
func Deserialize(data []byte) ([]Entry, error) {
	return Import(bytes.NewReader(data))
}

// Export writes Serialize(entries) to w.
func Export(w io.Writer, entries []Entry) error {
	raw, err := Serialize(entries)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

// Import reads one serialized log from r.
func Import(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("message: deserialize log: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
