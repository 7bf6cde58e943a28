package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/userauth/store"
)

const recordFormatVersionV1 = 1

var errCorruptRecord = errors.New("corrupt user record")

// encodeRecord writes a versioned binary form of u. Strings are
// length-prefixed with uint16; timestamps are unix nanoseconds.
func encodeRecord(u *store.User) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64 + len(u.ID) + len(u.Email) + len(u.HashedPassword) + len(u.SessionID) + len(u.ResetToken))

	buf.WriteByte(recordFormatVersionV1)

	for _, field := range []string{u.ID, u.Email, u.HashedPassword, u.SessionID, u.ResetToken} {
		if len(field) > 65535 {
			return nil, errors.New("user record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	if err := binary.Write(&buf, binary.BigEndian, u.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, u.UpdatedAt.UnixNano()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*store.User, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}
	if version != recordFormatVersionV1 {
		return nil, errors.New("unsupported user record version")
	}

	fields := make([]string, 5)
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, errCorruptRecord
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errCorruptRecord
		}
		fields[i] = string(raw)
	}

	var created, updated int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, errCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &updated); err != nil {
		return nil, errCorruptRecord
	}
	if reader.Len() != 0 {
		return nil, errCorruptRecord
	}

	return &store.User{
		ID:             fields[0],
		Email:          fields[1],
		HashedPassword: fields[2],
		SessionID:      fields[3],
		ResetToken:     fields[4],
		CreatedAt:      time.Unix(0, created).UTC(),
		UpdatedAt:      time.Unix(0, updated).UTC(),
	}, nil
}
