// Package filter runs the chunk filter pipeline of HDF5 datasets. Deflate,
// byte shuffle and Fletcher-32 are built in; other filters fail unless the
// pipeline marks them optional.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/message"
)

// ErrUnsupported is returned for a required filter with no codec here.
var ErrUnsupported = errors.New("unsupported filter")

var knownNames = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
}

type codec interface {
	decode(in []byte) ([]byte, error)
	encode(in []byte) ([]byte, error)
}

// stage keeps the filter's index in the pipeline message, which is the bit
// a chunk's filter mask uses to skip it.
type stage struct {
	id  uint16
	bit uint
	codec
}

// Pipeline applies a dataset's filters. The zero value passes data through.
type Pipeline struct {
	stages []stage
}

// NewPipeline builds the codecs for fp. Optional filters without a codec
// are dropped; a nil fp gives an empty pipeline.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		c, err := newCodec(info)
		if err != nil {
			if info.IsOptional() {
				continue
			}
			return nil, err
		}
		p.stages = append(p.stages, stage{id: info.ID, bit: uint(i), codec: c})
	}
	return p, nil
}

func newCodec(info message.FilterInfo) (codec, error) {
	cd := info.ClientData
	switch info.ID {
	case message.FilterDeflate:
		level := 6
		if len(cd) > 0 {
			level = int(cd[0])
		}
		return deflate{level: level}, nil
	case message.FilterShuffle:
		s := &shuffle{}
		if len(cd) > 0 {
			s.width = int(cd[0])
		}
		return s, nil
	case message.FilterFletcher32:
		return fletcher32{}, nil
	}
	name := info.Name
	if name == "" {
		name = knownNames[info.ID]
	}
	if name == "" {
		return nil, fmt.Errorf("%w: id %d", ErrUnsupported, info.ID)
	}
	return nil, fmt.Errorf("%w: %s (id %d)", ErrUnsupported, name, info.ID)
}

// SetElementSize gives shuffle stages the datatype size when their client
// data left it out.
func (p *Pipeline) SetElementSize(size int) {
	for _, s := range p.stages {
		if sh, ok := s.codec.(*shuffle); ok && sh.width <= 1 {
			sh.width = size
		}
	}
}

// Decode undoes the filters last to first. Bit i of mask skips filter i.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if mask&(1<<s.bit) != 0 {
			continue
		}
		out, err := s.decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", s.id, err)
		}
		data = out
	}
	return data, nil
}

// Encode applies the filters first to last, as when writing a chunk.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	for _, s := range p.stages {
		out, err := s.encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", s.id, err)
		}
		data = out
	}
	return data, nil
}

func (p *Pipeline) Empty() bool { return len(p.stages) == 0 }
func (p *Pipeline) Len() int     { return len(p.stages) }
