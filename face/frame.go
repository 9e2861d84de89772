package face

import (
	"bufio"
	"errors"
	"io"

	enc "github.com/zjkmxy/go-ndn/pkg/encoding"
)

// MaxPacketSize bounds a frame, header included.
const MaxPacketSize = 8800

var ErrFrameTooLarge = errors.New("face: frame exceeds maximum packet size")

func tlNumSize(first byte) int {
	switch first {
	case 0xfd:
		return 3
	case 0xfe:
		return 5
	case 0xff:
		return 9
	default:
		return 1
	}
}

// ReadFrame reads one top-level TLV, header included. It returns io.EOF only
// when r ends at a frame boundary.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	typeSize := tlNumSize(b[0])
	b, err = r.Peek(typeSize + 1)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	hdrSize := typeSize + tlNumSize(b[typeSize])
	b, err = r.Peek(hdrSize)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	length, _ := enc.ParseTLNum(enc.Buffer(b[typeSize:hdrSize]))
	if uint64(length) > uint64(MaxPacketSize-hdrSize) {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, hdrSize+int(length))
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, unexpectedEOF(err)
	}
	return frame, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
