package bvh

import (
	"fmt"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"motionToolkit/src/skeleton"
)

// Load parses the BVH file at path. A UTF-8 or UTF-16 byte order mark is
// honored and stripped.
func Load(path string, opts Options) (*skeleton.Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bvh: open %s: %w", path, err)
	}
	defer f.Close()

	r := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	anim, err := Parse(r, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return anim, nil
}

// Write serializes a to path, replacing any existing file.
func Write(path string, a *skeleton.Animation, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bvh: create %s: %w", path, err)
	}
	if err := Serialize(f, a, opts); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("bvh: close %s: %w", path, err)
	}
	return nil
}
