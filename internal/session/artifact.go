package session

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNoArtifact is returned when decoding an empty artifact slot.
var ErrNoArtifact = errors.New("no spectrogram available")

// Artifact is the most recently received spectrogram image, kept as the
// base64 text the backend returned.
type Artifact struct {
	Encoded  string
	Producer ActionClass
}

// Empty reports whether no spectrogram has been received.
func (a Artifact) Empty() bool { return a.Encoded == "" }

// PNG decodes the artifact to raw image bytes.
func (a Artifact) PNG() ([]byte, error) {
	if a.Empty() {
		return nil, ErrNoArtifact
	}
	data, err := base64.StdEncoding.DecodeString(a.Encoded)
	if err != nil {
		return nil, fmt.Errorf("decode spectrogram: %w", err)
	}
	return data, nil
}
