// Package catalogstore loads and publishes template catalogs kept on local
// disk or in S3. Locations are either a filesystem path or s3://bucket/key.
package catalogstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/shared/storage/object"
	"wellness-backend/internal/shared/storage/object/local"
	objects3 "wellness-backend/internal/shared/storage/object/s3"
)

const (
	s3Scheme    = "s3://"
	contentType = "application/yaml"
	// upper bound on a catalog document
	maxCatalogBytes = 4 << 20
)

// Options configures access to remote stores.
type Options struct {
	Region   string
	KMSKeyID string
}

// Location is a parsed catalog location.
type Location struct {
	Bucket string // empty for local paths
	Key    string
	Dir    string // root directory for local paths
}

// IsS3 reports whether the location points at an S3 object.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return filepath.Join(l.Dir, filepath.FromSlash(l.Key))
}

// ParseLocation splits raw into a store root and an object key.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("catalog location is empty")
	}
	if strings.HasPrefix(raw, s3Scheme) {
		rest := strings.TrimPrefix(raw, s3Scheme)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || strings.Trim(key, "/") == "" {
			return Location{}, fmt.Errorf("s3 catalog location %q needs a bucket and a key", raw)
		}
		return Location{Bucket: bucket, Key: strings.Trim(key, "/")}, nil
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return Location{}, fmt.Errorf("resolve %s: %w", raw, err)
	}
	return Location{Dir: filepath.Dir(abs), Key: filepath.Base(abs)}, nil
}

var newS3Store = func(ctx context.Context, bucket string, opts Options) (object.Store, error) {
	return objects3.New(ctx, opts.Region, bucket, "", opts.KMSKeyID)
}

func open(ctx context.Context, loc Location, opts Options) (object.Store, error) {
	if loc.IsS3() {
		return newS3Store(ctx, loc.Bucket, opts)
	}
	return local.New(loc.Dir), nil
}

// Load returns the catalog at location, or the embedded catalog when location
// is empty. Any validation failure is returned as engine.ErrInvalidCatalog.
func Load(ctx context.Context, location string, opts Options) (*engine.Catalog, error) {
	if strings.TrimSpace(location) == "" {
		return engine.DefaultCatalog()
	}
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	store, err := open(ctx, loc, opts)
	if err != nil {
		return nil, err
	}
	rc, err := store.Get(ctx, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", loc, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", loc, err)
	}
	if len(data) > maxCatalogBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", engine.ErrInvalidCatalog, loc, maxCatalogBytes)
	}
	return engine.ParseCatalog(data)
}

// Publish validates the catalog file at srcPath and writes it to location.
// Nothing is written when validation fails.
func Publish(ctx context.Context, srcPath, location string, opts Options) (*engine.Catalog, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", srcPath, err)
	}
	catalog, err := engine.ParseCatalog(data)
	if err != nil {
		return nil, err
	}

	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	store, err := open(ctx, loc, opts)
	if err != nil {
		return nil, err
	}
	if _, err := store.Put(ctx, loc.Key, contentType, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("publish catalog %s: %w", loc, err)
	}
	return catalog, nil
}
