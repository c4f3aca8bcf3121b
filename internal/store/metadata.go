package store

import (
	"time"

	"github.com/dicewire/dicewire/pixel"
)

// Metadata describes one stored animation data set.
type Metadata struct {
	ContentHash    string    `json:"content_hash"`
	Name           string    `json:"name,omitempty"`
	Size           int       `json:"size"`
	WireHash       uint32    `json:"wire_hash"`
	PaletteSize    uint16    `json:"palette_size"`
	KeyframeCount  uint16    `json:"keyframe_count"`
	TrackCount     uint16    `json:"track_count"`
	AnimationCount uint16    `json:"animation_count"`
	Sources        []Source  `json:"sources"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Source records where a data set was obtained from.
type Source struct {
	DieName   string    `json:"die_name,omitempty"`
	PixelID   uint32    `json:"pixel_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"` // "import", "upload"
	Filename  string    `json:"filename,omitempty"`
}

// newMetadata builds the metadata record for a freshly imported set.
func newMetadata(ds *pixel.DataSet, name, hash string) *Metadata {
	now := time.Now()
	return &Metadata{
		ContentHash:    hash,
		Name:           name,
		Size:           len(ds.Data),
		WireHash:       ds.Hash(),
		PaletteSize:    ds.PaletteSize,
		KeyframeCount:  ds.KeyframeCount,
		TrackCount:     ds.TrackCount,
		AnimationCount: ds.AnimationCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DataSet reconstructs the transferable data set from metadata plus
// its payload bytes.
func (m *Metadata) DataSet(payload []byte) *pixel.DataSet {
	return &pixel.DataSet{
		PaletteSize:    m.PaletteSize,
		KeyframeCount:  m.KeyframeCount,
		TrackCount:     m.TrackCount,
		AnimationCount: m.AnimationCount,
		Data:           payload,
	}
}
