package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// SaveModel gob-encodes m into the file at path, creating or truncating it.
func SaveModel(m interface{}, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", path)
	}
	if err := SaveModelToWriter(m, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close file %s", path)
	}
	return nil
}

// LoadModel decodes the file at path into m, which must be a pointer.
func LoadModel(m interface{}, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", path)
	}
	defer func() { _ = f.Close() }()
	return LoadModelFromReader(m, f)
}

// SaveModelToWriter gob-encodes m into w.
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a gob-encoded model from r into m.
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
