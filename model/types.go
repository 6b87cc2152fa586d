package model

// SourceKind tells how an utterance entered the relay.
type SourceKind string

const (
	SourceText  SourceKind = "text"
	SourceAudio SourceKind = "audio"
)

// Fixed properties of audio handed to speech recognition.
const (
	NormalizedSampleRate = 16000
	NormalizedChannels   = 1
)

// Utterance is one unit of user input. AudioFilePath is owned by the request
// that created it and is removed once the audio has been consumed.
type Utterance struct {
	SourceKind    SourceKind
	RawText       string
	AudioFilePath string
}

// NormalizedAudio is a mono 16 kHz WAV derived from an upload. It lives only
// for the transcription attempt that created it.
type NormalizedAudio struct {
	Path       string
	SampleRate int
	Channels   int
}

// RetrievedPassage is one search hit, in the order the provider ranked it.
type RetrievedPassage struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// SemanticResponse is the reply pushed back to the client. AudioURL is nil
// when synthesis was skipped or failed.
type SemanticResponse struct {
	Text     string  `json:"text"`
	AudioURL *string `json:"audioUrl"`
}

// HasAudio reports whether the response carries a playable audio URL.
func (r SemanticResponse) HasAudio() bool {
	return r.AudioURL != nil
}

// SynthesizedAudio is a freshly written reply file. Ownership passes to the
// client once its URL has been delivered.
type SynthesizedAudio struct {
	FilePath string
	Filename string
}
