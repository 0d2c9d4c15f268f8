package rsp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const interrupt = 0x03

var errChecksum = errors.New("rsp: checksum mismatch")

func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

func writePacket(w io.Writer, payload string) error {
	pkt := fmt.Sprintf("$%s#%02x", payload, checksum([]byte(payload)))
	_, err := io.WriteString(w, pkt)
	return err
}

// readPacket reads up to the next "$...#xx" frame, skipping acks and
// anything else in front of it. A frame with a bad checksum returns
// errChecksum after being consumed.
func readPacket(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '$' {
			break
		}
	}
	data, err := r.ReadBytes('#')
	if err != nil {
		return nil, err
	}
	data = data[:len(data)-1]
	var sum [2]byte
	if _, err = io.ReadFull(r, sum[:]); err != nil {
		return nil, err
	}
	want, err := strconv.ParseUint(string(sum[:]), 16, 8)
	if err != nil || byte(want) != checksum(data) {
		return nil, errChecksum
	}
	return expand(data), nil
}

// expand undoes run-length encoding: "c*n" repeats c n-29 more times.
func expand(data []byte) []byte {
	if bytes.IndexByte(data, '*') == -1 {
		return data
	}
	out := make([]byte, 0, len(data)*2)
	for i := 0; i < len(data); i++ {
		if data[i] == '*' && i > 0 && i+1 < len(data) {
			out = append(out, bytes.Repeat(out[len(out)-1:], int(data[i+1])-29)...)
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}
