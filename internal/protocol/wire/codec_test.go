package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	t.Run("SmallPayload", func(t *testing.T) {
		var buf bytes.Buffer
		payload := []byte("hello")

		require.NoError(t, WriteFrame(&buf, payload))

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, nil))

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("MultipleFragments", func(t *testing.T) {
		// Hand-build a two-fragment record; ReadFrame must reassemble it.
		var buf bytes.Buffer
		writeFragment := func(data []byte, last bool) {
			header := uint32(len(data))
			if last {
				header |= lastFragmentBit
			}
			var hdr [4]byte
			binary.BigEndian.PutUint32(hdr[:], header)
			buf.Write(hdr[:])
			buf.Write(data)
		}
		writeFragment([]byte("first-"), false)
		writeFragment([]byte("second"), true)

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("first-second"), got)
	})

	t.Run("OversizedFrameRejected", func(t *testing.T) {
		var buf bytes.Buffer
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], lastFragmentBit|uint32(maxFrameSize+1))
		buf.Write(hdr[:])

		_, err := ReadFrame(&buf)
		require.Error(t, err)
	})

	t.Run("TruncatedStream", func(t *testing.T) {
		var buf bytes.Buffer
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], lastFragmentBit|100)
		buf.Write(hdr[:])
		buf.Write([]byte("only a little"))

		_, err := ReadFrame(&buf)
		require.Error(t, err)
	})
}

func TestCallRoundTrip(t *testing.T) {
	t.Run("WithBody", func(t *testing.T) {
		message, err := EncodeCall(42, ProcLogin, &LoginRequest{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		header, body, err := DecodeCall(message)
		require.NoError(t, err)
		assert.Equal(t, uint32(42), header.XID)
		assert.Equal(t, MsgTypeCall, header.MsgType)
		assert.Equal(t, ProgramLoft, header.Program)
		assert.Equal(t, Version, header.Version)
		assert.Equal(t, ProcLogin, header.Procedure)

		var req LoginRequest
		require.NoError(t, DecodeBody(body, &req))
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "pw", req.Password)
	})

	t.Run("WithoutBody", func(t *testing.T) {
		message, err := EncodeCall(7, ProcNull, nil)
		require.NoError(t, err)

		header, body, err := DecodeCall(message)
		require.NoError(t, err)
		assert.Equal(t, ProcNull, header.Procedure)
		assert.Empty(t, body)
	})

	t.Run("RejectsReplyMessage", func(t *testing.T) {
		message, err := EncodeReply(1, StatusAccepted, nil)
		require.NoError(t, err)

		_, _, err = DecodeCall(message)
		require.Error(t, err)
	})
}

func TestReplyRoundTrip(t *testing.T) {
	t.Run("AcceptedWithBody", func(t *testing.T) {
		message, err := EncodeReply(9, StatusAccepted, &StatusReply{OK: true, Message: "done"})
		require.NoError(t, err)

		header, body, err := DecodeReply(message)
		require.NoError(t, err)
		assert.Equal(t, uint32(9), header.XID)
		assert.Equal(t, StatusAccepted, header.Status)

		var reply StatusReply
		require.NoError(t, DecodeBody(body, &reply))
		assert.True(t, reply.OK)
		assert.Equal(t, "done", reply.Message)
	})

	t.Run("ErrorStatusOmitsBody", func(t *testing.T) {
		message, err := EncodeReply(9, StatusAuthRequired, &StatusReply{OK: true})
		require.NoError(t, err)

		header, body, err := DecodeReply(message)
		require.NoError(t, err)
		assert.Equal(t, StatusAuthRequired, header.Status)
		assert.Empty(t, body)
	})

	t.Run("RejectsCallMessage", func(t *testing.T) {
		message, err := EncodeCall(1, ProcNull, nil)
		require.NoError(t, err)

		_, _, err = DecodeReply(message)
		require.Error(t, err)
	})
}

func TestBinaryPayloadSurvivesTransport(t *testing.T) {
	data := make([]byte, 1031)
	for i := range data {
		data[i] = byte(i % 251)
	}

	message, err := EncodeCall(3, ProcUpload, &UploadRequest{Filename: "blob.bin", Data: data})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, message))
	received, err := ReadFrame(&buf)
	require.NoError(t, err)

	_, body, err := DecodeCall(received)
	require.NoError(t, err)

	var req UploadRequest
	require.NoError(t, DecodeBody(body, &req))
	assert.Equal(t, "blob.bin", req.Filename)
	assert.Equal(t, data, req.Data)
}
