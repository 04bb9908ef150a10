package signal

import "encoding/json"

// Codec encodes and decodes signal payloads to and from opaque byte
// strings. The termination sentinel never passes through a codec.
type Codec interface {
	Encode(sig *Signal) ([]byte, error)
	Decode(data []byte) (*Signal, error)
}

// JSONCodec is the default codec, serializing signals as JSON.
type JSONCodec struct{}

// Encode serializes the signal.
func (JSONCodec) Encode(sig *Signal) ([]byte, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, &EncodeError{Cause: err}
	}
	return data, nil
}

// Decode deserializes the signal.
func (JSONCodec) Decode(data []byte) (*Signal, error) {
	var sig Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return &sig, nil
}
