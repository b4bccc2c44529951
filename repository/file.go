package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stream-moderator/entities"
)

const documentKey = "rtsp_streams"

type fileStore struct {
	path string
}

// NewFileStore keeps streams in a keyed JSON document:
//
//	{"rtsp_streams": {"<stream id>": {"classroom_id": ..., ...}}}
//
// Keys are written and read back in insertion order.
func NewFileStore(path string) StreamStore {
	return &fileStore{path: path}
}

func (s *fileStore) Load(ctx context.Context) ([]entities.StreamRow, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var rows []entities.StreamRow
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if key != documentKey {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		for dec.More() {
			id, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			var row entities.StreamRow
			if err := dec.Decode(&row); err != nil {
				return nil, fmt.Errorf("decode stream %s: %w", id, err)
			}
			row.StreamID = id
			row.Position = len(rows)
			rows = append(rows, row)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func (s *fileStore) Save(ctx context.Context, rows []entities.StreamRow) error {
	var buf bytes.Buffer
	buf.WriteString("{\n    \"" + documentKey + "\": {")
	for i, row := range rows {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(row.StreamID)
		if err != nil {
			return err
		}
		value, err := json.MarshalIndent(row, "        ", "    ")
		if err != nil {
			return err
		}
		buf.WriteString("\n        ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}
	if len(rows) > 0 {
		buf.WriteString("\n    ")
	}
	buf.WriteString("}\n}\n")

	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected token %v, want %v", tok, want)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("unexpected token %v, want object key", tok)
	}
	return s, nil
}
