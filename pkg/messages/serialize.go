package messages

import (
	"bytes"
	"fmt"
	"io"

	messagefb "github.com/cbodonnell/arcade/flatbuffers/message"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

//go:generate flatc --go -o ../../flatbuffers ../../flatbuffers/message.fbs

func SerializeMessage(m *Message) ([]byte, error) {
	b, err := SerializeMessageFlatbuffer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress message: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

func DeserializeMessage(data []byte) (*Message, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(io.LimitReader(compReader, MessageBufferSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed message: %v", err)
	}
	if len(b) > MessageBufferSize {
		return nil, fmt.Errorf("message exceeds %d bytes", MessageBufferSize)
	}

	message, err := DeserializeMessageFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return message, nil
}

func SerializeMessageFlatbuffer(m *Message) ([]byte, error) {
	builder := flatbuffers.NewBuilder(0)

	instance := builder.CreateString(m.Instance)
	payload := builder.CreateByteVector(m.Payload)

	messagefb.MessageStart(builder)
	messagefb.MessageAddType(builder, byte(m.Type))
	messagefb.MessageAddInstance(builder, instance)
	messagefb.MessageAddPayload(builder, payload)
	messageOffset := messagefb.MessageEnd(builder)
	builder.Finish(messageOffset)
	b := builder.FinishedBytes()

	return b, nil
}

func DeserializeMessageFlatbuffer(b []byte) (m *Message, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("buffer too short: %d bytes", len(b))
	}
	// malformed buffers make the accessors index out of range
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("malformed message buffer: %v", r)
		}
	}()

	message := &Message{}
	messageFlatbuffer := messagefb.GetRootAsMessage(b, 0)
	message.Type = MessageType(messageFlatbuffer.Type())
	message.Instance = string(messageFlatbuffer.Instance())
	if payload := messageFlatbuffer.PayloadBytes(); len(payload) > 0 {
		message.Payload = append([]byte(nil), payload...)
	}

	return message, nil
}
