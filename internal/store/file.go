package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dicewire/dicewire/pixel"
)

// DataSetFile is the on-disk interchange format for animation data
// sets: counts plus the encoded payload (base64 in JSON).
type DataSetFile struct {
	Name           string `json:"name,omitempty"`
	PaletteSize    uint16 `json:"palette_size"`
	KeyframeCount  uint16 `json:"keyframe_count"`
	TrackCount     uint16 `json:"track_count"`
	AnimationCount uint16 `json:"animation_count"`
	Data           []byte `json:"data"`
}

// ReadDataSetFile loads a data-set file and returns the transferable
// set plus its declared name.
func ReadDataSetFile(path string) (*pixel.DataSet, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var f DataSetFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, "", fmt.Errorf("failed to parse data set file: %w", err)
	}
	if len(f.Data) == 0 {
		return nil, "", fmt.Errorf("data set file %s has no payload", path)
	}
	ds := &pixel.DataSet{
		PaletteSize:    f.PaletteSize,
		KeyframeCount:  f.KeyframeCount,
		TrackCount:     f.TrackCount,
		AnimationCount: f.AnimationCount,
		Data:           f.Data,
	}
	return ds, f.Name, nil
}

// WriteDataSetFile writes a data-set file.
func WriteDataSetFile(path string, ds *pixel.DataSet, name string) error {
	f := DataSetFile{
		Name:           name,
		PaletteSize:    ds.PaletteSize,
		KeyframeCount:  ds.KeyframeCount,
		TrackCount:     ds.TrackCount,
		AnimationCount: ds.AnimationCount,
		Data:           ds.Data,
	}
	raw, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
