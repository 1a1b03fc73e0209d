package object

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// MinGroupChunkSize is the message area h5py gives a new group header.
const MinGroupChunkSize = 120

// Encode returns msgs as a version 2 object header. When the messages take
// less than minChunk bytes a NIL message pads the block out.
func Encode(msgs []message.Message, cfg binpkg.Config, minChunk int) ([]byte, error) {
	var data []byte
	for _, m := range msgs {
		body, err := message.Encode(m, cfg)
		if err != nil {
			return nil, err
		}
		if len(body) > math.MaxUint16 {
			return nil, fmt.Errorf("message type %#x: %d bytes do not fit a header message", uint16(m.Type()), len(body))
		}
		data = appendMessage(data, m.Type(), body)
	}
	if pad := minChunk - len(data); pad > 0 {
		// The NIL message needs room for its own prefix.
		data = appendMessage(data, message.TypeNIL, make([]byte, max(pad, 4)-4))
	}

	width := 1
	switch {
	case len(data) > math.MaxUint16:
		width = 4
	case len(data) > math.MaxUint8:
		width = 2
	}
	out := make([]byte, 0, 6+width+len(data)+4)
	out = append(out, magicHeader...)
	out = append(out, 2, uint8(bits.TrailingZeros(uint(width))))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))[:6+width]
	out = append(out, data...)
	return binary.LittleEndian.AppendUint32(out, binpkg.Lookup3Checksum(out)), nil
}

func appendMessage(b []byte, t message.Type, body []byte) []byte {
	b = append(b, uint8(t))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(body)))
	b = append(b, 0)
	return append(b, body...)
}

// GroupMessages returns the messages of a compact new-style group holding
// links.
func GroupMessages(links ...*message.Link) []message.Message {
	msgs := make([]message.Message, 0, len(links)+2)
	msgs = append(msgs, message.NewLinkInfo(), message.NewGroupInfo())
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// DatasetMessages returns the messages every dataset header starts with.
func DatasetMessages(ds *message.Dataspace, dt *message.Datatype, layout *message.DataLayout) []message.Message {
	return []message.Message{ds, dt, layout}
}
