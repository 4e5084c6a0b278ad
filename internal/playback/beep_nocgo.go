//go:build !((linux && cgo) || windows || darwin)

package playback

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for native sound libraries.
const AudioAvailable = false

// SpeakerLoader fails every load in builds without audio output.
type SpeakerLoader struct{}

// NewLoader returns the audio-device loader.
func NewLoader() Loader { return SpeakerLoader{} }

func (SpeakerLoader) Load(string) (Handle, error) {
	return nil, ErrAudioUnavailable
}
