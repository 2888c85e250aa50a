package rtpio

import "errors"

// Sentinel errors for RTP handling.
var (
	// ErrEmptyPacket indicates an empty datagram or payload.
	ErrEmptyPacket = errors.New("empty RTP packet")

	// ErrUnknownPayloadType indicates no codec is registered for the payload type.
	ErrUnknownPayloadType = errors.New("unknown payload type")

	// ErrDecode indicates the payload could not be decoded.
	ErrDecode = errors.New("payload decode failed")

	// ErrChannelLayout indicates decoded audio cannot be mapped onto the
	// engine's channel count.
	ErrChannelLayout = errors.New("unsupported channel layout")

	// ErrEncodeUnsupported indicates the codec has no encoder.
	ErrEncodeUnsupported = errors.New("codec cannot encode")
)
