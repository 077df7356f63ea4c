// Package hydrate converts share payloads into projects and back.
//
// Two historical wire formats exist. Version 1 carries players and the ball
// only. Version 2 adds colours, labels, orientation, annotations and top level
// name/sport. Both describe movement as position updates at absolute
// timestamps in seconds.
package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload versions.
const (
	Version1 = 1
	Version2 = 2
)

// MaxPayloadBytes is the serialized size ceiling for a share payload.
const MaxPayloadBytes = 100 * 1024

var (
	// ErrUnsupportedVersion is returned for a payload whose version is
	// missing or unknown.
	ErrUnsupportedVersion = errors.New("unsupported share payload version")
	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("share payload too large")
)

// SharePayload is either PayloadV1 or PayloadV2.
type SharePayload interface {
	PayloadVersion() int
	sharePayload()
}

// Canvas is the coordinate space the payload was authored in.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Update moves an entity at a frame timestamp.
type Update struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// EntityV1 is a base entity of a version 1 payload.
type EntityV1 struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Team string  `json:"team"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// FrameV1 is a timestamped set of updates.
type FrameV1 struct {
	T       float64  `json:"t"`
	Updates []Update `json:"updates"`
}

// PayloadV1 is the original minimal share format.
type PayloadV1 struct {
	Version  int        `json:"version"`
	Canvas   Canvas     `json:"canvas"`
	Entities []EntityV1 `json:"entities"`
	Frames   []FrameV1  `json:"frames"`
}

func (PayloadV1) PayloadVersion() int { return Version1 }
func (PayloadV1) sharePayload()       {}

// EntityV2 is a base entity of a version 2 payload.
type EntityV2 struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Team        string   `json:"team,omitempty"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Color       string   `json:"color,omitempty"`
	Label       string   `json:"label,omitempty"`
	ParentID    string   `json:"parentId,omitempty"`
	Orientation *float64 `json:"orientation,omitempty"`
}

// UpdateV2 is an Update that may also turn the entity.
type UpdateV2 struct {
	Update
	Orientation *float64 `json:"orientation,omitempty"`
}

// AnnotationV2 is an annotation as carried in a version 2 frame. Frame
// references name frame ids of the same payload.
type AnnotationV2 struct {
	ID           string    `json:"id,omitempty"`
	Type         string    `json:"type"`
	Points       []float64 `json:"points"`
	Color        string    `json:"color,omitempty"`
	StartFrameID string    `json:"startFrameId,omitempty"`
	EndFrameID   string    `json:"endFrameId,omitempty"`
}

// FrameV2 is a version 2 frame. ID is optional and only needed when
// annotations of other frames refer to it.
type FrameV2 struct {
	ID          string         `json:"id,omitempty"`
	T           float64        `json:"t"`
	Updates     []UpdateV2     `json:"updates"`
	Annotations []AnnotationV2 `json:"annotations,omitempty"`
}

// PayloadV2 is the richer share format.
type PayloadV2 struct {
	Version  int        `json:"version"`
	Name     string     `json:"name,omitempty"`
	Sport    string     `json:"sport,omitempty"`
	Canvas   Canvas     `json:"canvas"`
	Entities []EntityV2 `json:"entities"`
	Frames   []FrameV2  `json:"frames"`
}

func (PayloadV2) PayloadVersion() int { return Version2 }
func (PayloadV2) sharePayload()       {}

// ValidateSize checks raw against MaxPayloadBytes.
func ValidateSize(raw []byte) error {
	if len(raw) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(raw), MaxPayloadBytes)
	}
	return nil
}

// Decode reads the version discriminator and decodes raw into the matching
// payload type.
func Decode(raw []byte) (SharePayload, error) {
	var head struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decoding share payload: %w", err)
	}
	if head.Version == nil {
		return nil, fmt.Errorf("%w: version field missing", ErrUnsupportedVersion)
	}

	switch *head.Version {
	case Version1:
		var p PayloadV1
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding v1 payload: %w", err)
		}
		return p, nil
	case Version2:
		var p PayloadV2
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding v2 payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *head.Version)
	}
}

// Encode serializes a payload and enforces the size ceiling.
func Encode(p SharePayload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding share payload: %w", err)
	}
	if err := ValidateSize(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
