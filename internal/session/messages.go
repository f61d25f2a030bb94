package session

// Wire envelope types for the JSON side of the channel. Binary frames carry
// raw audio in both directions and need no envelope.

// Inbound message types.
const (
	typeAudioProcessing = "audio_processing"
	typeTurnDetection   = "turn_detection"
)

// inboundEnvelope is any JSON text frame from the client.
type inboundEnvelope struct {
	Type string `json:"type"`

	// Audio is base64 PCM16 for audio_processing, or base64 PCM16/float32
	// for turn_detection depending on Dtype.
	Audio string `json:"audio"`

	// Dtype is "float32" when Audio carries raw little-endian float32
	// samples instead of PCM16.
	Dtype string `json:"dtype,omitempty"`
}

// statusMessage acknowledges receipt before the remote round trips complete.
type statusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorMessage reports a client-visible failure. Sending one never closes
// the connection.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// turnResultMessage answers a turn_detection probe.
type turnResultMessage struct {
	Type   string     `json:"type"`
	Result turnResult `json:"result"`
}

type turnResult struct {
	IsComplete  bool    `json:"is_complete"`
	Probability float64 `json:"probability"`
}
