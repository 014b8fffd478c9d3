// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/WilliamSmith5172078/sealed"
)

// ShareHandlerID is the protocol ID for decryption share handling
const ShareHandlerID = 0x5ea1ed01

// ShareRequest asks a committee member for its decryption share of a
// request's handles.
type ShareRequest struct {
	RequestID ids.ID
	Handles   []sealed.Handle
}

// ShareResponse carries a member's plaintexts, in handle order, signed
// over the request id and the plaintexts themselves.
type ShareResponse struct {
	Plaintexts []uint64
	Signature  []byte
}

// MarshalShareRequest marshals a share request to bytes
func MarshalShareRequest(req *ShareRequest) ([]byte, error) {
	// Format: requestID(32) + count(4) + count * (kind(1) + id(32))
	buf := make([]byte, 32+4+len(req.Handles)*33)
	copy(buf[0:32], req.RequestID[:])
	binary.BigEndian.PutUint32(buf[32:36], uint32(len(req.Handles)))

	offset := 36
	for _, h := range req.Handles {
		buf[offset] = byte(h.Kind)
		copy(buf[offset+1:offset+33], h.ID[:])
		offset += 33
	}
	return buf, nil
}

// UnmarshalShareRequest unmarshals a share request from bytes
func UnmarshalShareRequest(data []byte) (*ShareRequest, error) {
	if len(data) < 36 {
		return nil, fmt.Errorf("share request too short: %d bytes", len(data))
	}

	req := &ShareRequest{}
	copy(req.RequestID[:], data[0:32])

	count := binary.BigEndian.Uint32(data[32:36])
	if len(data) != 36+int(count)*33 {
		return nil, fmt.Errorf("share request length mismatch: %d bytes for %d handles", len(data), count)
	}

	req.Handles = make([]sealed.Handle, count)
	offset := 36
	for i := range req.Handles {
		req.Handles[i].Kind = sealed.Kind(data[offset])
		copy(req.Handles[i].ID[:], data[offset+1:offset+33])
		offset += 33
	}
	return req, nil
}

// MarshalShareResponse marshals a share response to bytes
func MarshalShareResponse(resp *ShareResponse) ([]byte, error) {
	// Format: count(4) + count * plaintext(8) + signature
	buf := make([]byte, 4+len(resp.Plaintexts)*8+len(resp.Signature))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(resp.Plaintexts)))

	offset := 4
	for _, p := range resp.Plaintexts {
		binary.BigEndian.PutUint64(buf[offset:offset+8], p)
		offset += 8
	}
	copy(buf[offset:], resp.Signature)
	return buf, nil
}

// UnmarshalShareResponse unmarshals a share response from bytes
func UnmarshalShareResponse(data []byte) (*ShareResponse, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("share response too short: %d bytes", len(data))
	}

	count := binary.BigEndian.Uint32(data[0:4])
	if len(data) < 4+int(count)*8 {
		return nil, fmt.Errorf("share response length mismatch: %d bytes for %d plaintexts", len(data), count)
	}

	resp := &ShareResponse{Plaintexts: make([]uint64, count)}
	offset := 4
	for i := range resp.Plaintexts {
		resp.Plaintexts[i] = binary.BigEndian.Uint64(data[offset : offset+8])
		offset += 8
	}
	resp.Signature = data[offset:]
	return resp, nil
}

// shareDigest is the message a committee member signs: the request id
// followed by the plaintexts it reports.
func shareDigest(requestID ids.ID, plaintexts []uint64) []byte {
	msg := make([]byte, 32+len(plaintexts)*8)
	copy(msg[0:32], requestID[:])
	for i, p := range plaintexts {
		binary.BigEndian.PutUint64(msg[32+i*8:], p)
	}
	return msg
}
