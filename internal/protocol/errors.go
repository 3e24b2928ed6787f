package protocol

import "github.com/pkg/errors"

// Sentinel errors for the wire protocol's failure taxonomy. Callers use
// errors.Is (or pkg/errors.Cause for wrapped variants) to decide recovery
// policy; none of these ever leave the receiving packet's decode in a
// partially-applied state.
var (
	// ErrBufferUnderrun is returned by BitReader/SnapshotCodec when a read
	// would consume more bits than remain in the buffer.
	ErrBufferUnderrun = errors.New("protocol: buffer underrun")

	// ErrVarintOverflow is returned when a varint would need more than 5
	// bytes to represent a u32.
	ErrVarintOverflow = errors.New("protocol: varint overflow")

	// ErrBaselineMismatch is returned by Decode when the snapshot declares
	// a non-zero baseline_sequence but the supplied baseline is absent or
	// its sequence does not match.
	ErrBaselineMismatch = errors.New("protocol: baseline mismatch")

	// ErrQuantizationOutOfRange indicates a logic error upstream: a value
	// reached the encoder outside its declared envelope after clamping
	// should already have prevented this. The quantizers clamp instead of
	// failing, so no function in this module returns it.
	ErrQuantizationOutOfRange = errors.New("protocol: quantization out of range")

	// ErrBaselineEvicted names the case where a peer's acked sequence fell
	// out of history. ServerProtocol does not return it: it builds a full
	// keyframe for that peer directly.
	ErrBaselineEvicted = errors.New("protocol: baseline evicted from history")
)
