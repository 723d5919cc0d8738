// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"govis/conlog"
)

// PVS holds one bit row per cluster. Compressed rows are run length encoded:
// a zero byte is followed by the number of zero bytes it stands for.
type PVS struct {
	Data         []byte
	ClusterCount int
	Compressed   bool
}

// RowSize is the size in bytes of one decompressed row.
func (p *PVS) RowSize() int {
	return (p.ClusterCount + 7) / 8
}

// NoVis returns a row with every cluster visible.
func NoVis(size int) []byte {
	r := make([]byte, size)
	for i := range r {
		r[i] = 0xff
	}
	return r
}

// Row writes the row stored at offset into buf and returns it. It returns nil
// if there is no row at offset; callers treat that as everything visible.
// Offsets beyond the data are reported and ignored.
func (p *PVS) Row(offset int32, buf []byte) []byte {
	size := p.RowSize()
	if offset < 0 || size == 0 {
		return nil
	}
	if int(offset) >= len(p.Data) {
		conlog.Warnf("pvs offset %d beyond data size %d", offset, len(p.Data))
		return nil
	}
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	in := p.Data[offset:]
	if !p.Compressed {
		n := copy(buf, in)
		if n < size {
			conlog.Warnf("pvs row at %d truncated", offset)
			for i := n; i < size; i++ {
				buf[i] = 0xff
			}
		}
		return buf
	}
	if !Decompress(buf, in) {
		conlog.Warnf("faulty pvs data at %d", offset)
	}
	return buf
}

// Decompress expands the compressed row in into out. It stops when out is
// full. If in ends early the rest of out is set visible and false is
// returned.
func Decompress(out, in []byte) bool {
	// 'in' looks like
	// 70550311
	// and gets uncompressed to
	// 700000500011	(7 5x0 5 3x0 1 1)
	j := 0
	i := 0
	for j < len(out) {
		if i >= len(in) {
			for ; j < len(out); j++ {
				out[j] = 0xff
			}
			return false
		}
		if in[i] != 0 {
			out[j] = in[i]
			j++
			i++
			continue
		}
		i++
		if i >= len(in) {
			for ; j < len(out); j++ {
				out[j] = 0xff
			}
			return false
		}
		c := int(in[i])
		i++
		if j+c > len(out) {
			c = len(out) - j
		}
		for ; c > 0; c-- {
			out[j] = 0
			j++
		}
	}
	return true
}

// Compress run length encodes a row so that Decompress restores it.
func Compress(row []byte) []byte {
	out := make([]byte, 0, len(row))
	for i := 0; i < len(row); i++ {
		out = append(out, row[i])
		if row[i] != 0 {
			continue
		}
		rep := 1
		for i+1 < len(row) && row[i+1] == 0 && rep < 255 {
			rep++
			i++
		}
		out = append(out, byte(rep))
	}
	return out
}

// Build packs uncompressed rows, one per cluster, into a PVS and returns it
// together with the offset of every row.
func Build(rows [][]byte, clusterCount int, compress bool) (*PVS, []int32) {
	p := &PVS{ClusterCount: clusterCount, Compressed: compress}
	offsets := make([]int32, len(rows))
	for i, r := range rows {
		offsets[i] = int32(len(p.Data))
		if compress {
			p.Data = append(p.Data, Compress(r)...)
		} else {
			row := make([]byte, p.RowSize())
			copy(row, r)
			p.Data = append(p.Data, row...)
		}
	}
	return p, offsets
}
