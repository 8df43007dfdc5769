package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FileStore reads the partitioned source datasets from a directory tree of
// GeoJSON files. The layout mirrors the upstream per-state partitions:
//
//	{root}/arturo_structuredetails_{REGION}_full/{layer}.geojson
//	{root}/arturo_{REGION}_property_details/parcels.geojson
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at the given source-data directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Ping reports whether the source-data root exists and is a directory. It
// backs the readiness probe for file-sourced deployments.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("source data root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source data root %s is not a directory", s.root)
	}
	return nil
}

// LoadLayer reads one named layer from a region's structure partition,
// prefiltered to the bbox.
func (s *FileStore) LoadLayer(ctx context.Context, region, layer string, bbox orb.Bound) (*geojson.FeatureCollection, error) {
	dir := fmt.Sprintf("arturo_structuredetails_%s_full", region)
	return s.read(ctx, filepath.Join(s.root, dir, layer+".geojson"), bbox)
}

// LoadPropertyLayer reads the parcels layer from a region's property
// partition, prefiltered to the bbox.
func (s *FileStore) LoadPropertyLayer(ctx context.Context, region string, bbox orb.Bound) (*geojson.FeatureCollection, error) {
	dir := fmt.Sprintf("arturo_%s_property_details", region)
	return s.read(ctx, filepath.Join(s.root, dir, LayerParcels+".geojson"), bbox)
}

func (s *FileStore) read(ctx context.Context, path string, bbox orb.Bound) (*geojson.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, path)
		}
		return nil, fmt.Errorf("failed to read layer file %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layer file %s: %w", path, err)
	}

	return clipToBound(fc, bbox), nil
}
