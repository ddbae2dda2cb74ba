package model

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const artifactMagic = "marketlens-artifact/v1"

// ArtifactKey identifies what a cached artifact was built from. An artifact
// is only reused when every field matches.
type ArtifactKey struct {
	SchemaVersion string
	DataChecksum  string
	ParamsHash    string
}

type artifactHeader struct {
	Magic string
	Key   ArtifactKey
}

// LoadStatus describes the outcome of ArtifactCache.Load.
type LoadStatus int

const (
	// ArtifactMissing means no file exists at the cache path.
	ArtifactMissing LoadStatus = iota
	// ArtifactStale means a file exists but was built from a different key.
	ArtifactStale
	// ArtifactLoaded means the stored model was decoded into the destination.
	ArtifactLoaded
)

func (s LoadStatus) String() string {
	switch s {
	case ArtifactMissing:
		return "missing"
	case ArtifactStale:
		return "stale"
	case ArtifactLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// ArtifactCache stores one model at a fixed path together with its key.
//
// Writes go to a temporary file in the same directory followed by a rename,
// so readers never observe a partially written artifact. Two processes that
// both miss the cache will both train and both write; the last rename wins.
type ArtifactCache struct {
	Path string
}

// NewArtifactCache returns a cache rooted at path.
func NewArtifactCache(path string) *ArtifactCache {
	return &ArtifactCache{Path: path}
}

// Load decodes the cached model into dst when the stored key equals key.
func (c *ArtifactCache) Load(key ArtifactKey, dst interface{}) (LoadStatus, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ArtifactMissing, nil
		}
		return ArtifactMissing, errors.Wrapf(err, "failed to open file %s", c.Path)
	}
	defer func() { _ = f.Close() }()

	dec := gob.NewDecoder(f)
	var hdr artifactHeader
	if err := dec.Decode(&hdr); err != nil {
		// unreadable header: treat like a stale artifact and rebuild it
		return ArtifactStale, nil
	}
	if hdr.Magic != artifactMagic || hdr.Key != key {
		return ArtifactStale, nil
	}
	if err := dec.Decode(dst); err != nil {
		return ArtifactStale, errors.Wrapf(err, "failed to decode artifact %s", c.Path)
	}
	return ArtifactLoaded, nil
}

// Store writes src under key, replacing any existing artifact.
func (c *ArtifactCache) Store(key ArtifactKey, src interface{}) error {
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.Path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create file in %s", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(artifactHeader{Magic: artifactMagic, Key: key}); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "failed to encode artifact header")
	}
	if err := enc.Encode(src); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "failed to encode model")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to close file %s", tmpName)
	}
	if err := os.Rename(tmpName, c.Path); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to move artifact into %s", c.Path)
	}
	return nil
}

// Remove deletes the cached artifact. A missing file is not an error.
func (c *ArtifactCache) Remove() error {
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", c.Path)
	}
	return nil
}
