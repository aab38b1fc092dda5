package dirtree

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// BucketConfig describes a blob-backed library without spelling out a
// gocloud URL.
type BucketConfig struct {
	Driver         string `mapstructure:"driver"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	BaseDir        string `mapstructure:"base_dir"`
}

func (c BucketConfig) Validate() error {
	switch strings.ToLower(c.Driver) {
	case "s3":
		if c.Bucket == "" {
			return errors.New("bucket required for s3 driver")
		}
	case "file":
		if c.BaseDir == "" {
			return errors.New("base_dir required for file driver")
		}
	case "mem":
	case "":
		return errors.New("bucket driver not set")
	default:
		return fmt.Errorf("unknown bucket driver: %s", c.Driver)
	}
	return nil
}

// URL builds the gocloud bucket URL for c.
func (c BucketConfig) URL() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	switch strings.ToLower(c.Driver) {
	case "s3":
		u := url.URL{Scheme: "s3", Host: c.Bucket}
		q := url.Values{}
		if c.Region != "" {
			q.Set("region", c.Region)
		}
		if c.Endpoint != "" {
			q.Set("endpoint", c.Endpoint)
		}
		if c.ForcePathStyle {
			q.Set("s3ForcePathStyle", "true")
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	case "file":
		abs, err := filepath.Abs(c.BaseDir)
		if err != nil {
			return "", err
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}
	return "mem://", nil
}

// sanitizeKey prevents path traversal.
func sanitizeKey(key string) string {
	key = filepath.ToSlash(key)
	key = strings.TrimLeft(key, "/")
	parts := strings.Split(key, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
