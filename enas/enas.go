// Package enas builds weight-sharing ResNet supernets where each residual
// block picks its weight bit width, typically binary or full precision.
// Blocks expose a latency cost model and may alias the convolution weights
// of a structurally identical partner block so that several sampled
// sub-architectures train the same underlying storage.
package enas

import (
	"github.com/pkg/errors"
)

// Construction errors. All block and network constructors fail synchronously
// and wrap one of these sentinels with context.
var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrConfiguration        = errors.New("configuration error")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnsupported          = errors.New("unsupported operation")
)

func IsShapeMismatch(err error) bool { return errors.Cause(err) == ErrShapeMismatch }

func IsConfiguration(err error) bool { return errors.Cause(err) == ErrConfiguration }

func IsInvalidConfiguration(err error) bool { return errors.Cause(err) == ErrInvalidConfiguration }

func IsUnsupported(err error) bool { return errors.Cause(err) == ErrUnsupported }

// BlockKind selects between the two residual block bodies.
type BlockKind int

const (
	BasicBlock BlockKind = iota
	Bottleneck
)

func (k BlockKind) String() string {
	switch k {
	case BasicBlock:
		return "basic"
	case Bottleneck:
		return "bottleneck"
	}
	return "unknown"
}

// BlockSpec describes one residual block. Downsample must be set when the
// channel count changes or the stride is greater than one: the shortcut is
// then a strided 1x1 convolution instead of the identity. InChannels 0 defers
// the input depth to Init; such a block allocates its convolution weights on
// the first Init and cannot act as a weight sharing partner before that.
type BlockSpec struct {
	Kind       BlockKind
	Version    int
	Channels   int
	InChannels int
	Stride     int
	Downsample bool
	Bits       int
	GradCancel float64
}

func (s BlockSpec) validate() error {
	if s.Version != 1 && s.Version != 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "block version %d", s.Version)
	}
	if s.Kind != BasicBlock && s.Kind != Bottleneck {
		return errors.Wrapf(ErrInvalidConfiguration, "block kind %d", int(s.Kind))
	}
	if s.Channels < 1 || s.InChannels < 0 || s.Stride < 1 || s.Bits < 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "block spec %+v", s)
	}
	if !s.Downsample && (s.Stride > 1 || (s.InChannels > 0 && s.Channels != s.InChannels)) {
		return errors.Wrapf(ErrInvalidConfiguration,
			"identity shortcut needs matching shape: %d => %d channels stride %d", s.InChannels, s.Channels, s.Stride)
	}
	return nil
}

// shareKey is the structural shape compared when sharing weights. The
// gradient cancel threshold does not affect tensor shapes.
func (s BlockSpec) shareKey() BlockSpec {
	s.GradCancel = 0
	return s
}

// Latency is the block cost model: a pure function of the bit width which
// ignores any measured forward latency.
func Latency(bits int) float64 {
	if bits == 32 {
		return 3
	}
	return 3 * (0.25 + 0.75*(float64(bits)/32))
}
