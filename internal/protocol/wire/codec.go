package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// maxFrameSize bounds a single record so a hostile peer cannot make the
// server allocate unbounded memory from a forged length word.
const maxFrameSize = 64 << 20

// lastFragmentBit marks the final (and, here, only) fragment of a record.
const lastFragmentBit = 0x80000000

// WriteFrame record-marks payload and writes it in one piece.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentBit|uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write fragment header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write fragment payload: %w", err)
	}
	return nil
}

// ReadFrame reads one record-marked message, reassembling fragments.
func ReadFrame(r io.Reader) ([]byte, error) {
	var message []byte

	for {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}

		header := binary.BigEndian.Uint32(buf[:])
		length := header & ^uint32(lastFragmentBit)
		if uint64(len(message))+uint64(length) > maxFrameSize {
			return nil, fmt.Errorf("frame exceeds %d bytes", maxFrameSize)
		}

		fragment := make([]byte, length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		message = append(message, fragment...)

		if header&lastFragmentBit != 0 {
			return message, nil
		}
	}
}

// EncodeCall marshals a call header plus body into one framed message.
func EncodeCall(xid, procedure uint32, body any) ([]byte, error) {
	header := CallHeader{
		XID:       xid,
		MsgType:   MsgTypeCall,
		Program:   ProgramLoft,
		Version:   Version,
		Procedure: procedure,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal call header: %w", err)
	}
	if body != nil {
		if _, err := xdr.Marshal(&buf, body); err != nil {
			return nil, fmt.Errorf("marshal call body: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeCall parses the call header and returns the remaining body bytes.
func DecodeCall(message []byte) (*CallHeader, []byte, error) {
	header := &CallHeader{}
	n, err := xdr.Unmarshal(bytes.NewReader(message), header)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal call header: %w", err)
	}

	if header.MsgType != MsgTypeCall {
		return nil, nil, fmt.Errorf("expected CALL (%d), got %d", MsgTypeCall, header.MsgType)
	}

	return header, message[n:], nil
}

// EncodeReply marshals a reply header plus body into one framed message.
// The body is omitted for any status other than StatusAccepted.
func EncodeReply(xid, status uint32, body any) ([]byte, error) {
	header := ReplyHeader{
		XID:     xid,
		MsgType: MsgTypeReply,
		Status:  status,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal reply header: %w", err)
	}
	if status == StatusAccepted && body != nil {
		if _, err := xdr.Marshal(&buf, body); err != nil {
			return nil, fmt.Errorf("marshal reply body: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeReply parses the reply header and returns the remaining body bytes.
func DecodeReply(message []byte) (*ReplyHeader, []byte, error) {
	header := &ReplyHeader{}
	n, err := xdr.Unmarshal(bytes.NewReader(message), header)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal reply header: %w", err)
	}

	if header.MsgType != MsgTypeReply {
		return nil, nil, fmt.Errorf("expected REPLY (%d), got %d", MsgTypeReply, header.MsgType)
	}

	return header, message[n:], nil
}

// DecodeBody unmarshals a call or reply body into v.
func DecodeBody(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}
