package refresh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersionCurrent = 1

// Fixed header offsets (1-based, matching Lua string.byte/string.sub).
// The rotation script depends on these; changing them requires a new
// format version and a parallel script update.
const (
	offVersion    = 1
	offStatus     = 2
	offTokenID    = 3
	offFamilyID   = 19
	offSecretHash = 35
	offReplacedBy = 67
	offIssuedAt   = 83
	offExpiresAt  = 91
	headerSize    = 98
)

func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)
	buf.WriteByte(byte(r.Status))
	buf.Write(r.TokenID[:])
	buf.Write(r.FamilyID[:])
	buf.Write(r.SecretHash[:])
	buf.Write(r.ReplacedBy[:])

	if err := binary.Write(&buf, binary.BigEndian, r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	if len(r.Subject) == 0 {
		return nil, errors.New("empty subject")
	}
	if len(r.Subject) > 255 {
		return nil, errors.New("subject too long")
	}
	buf.WriteByte(byte(len(r.Subject)))
	buf.WriteString(r.Subject)

	if len(r.ClientID) > 255 {
		return nil, errors.New("clientID too long")
	}
	buf.WriteByte(byte(len(r.ClientID)))
	buf.WriteString(r.ClientID)

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Record, error) {
	if len(data) < headerSize {
		return nil, errors.New("record too short")
	}

	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("invalid record version")
	}

	r := &Record{}

	status, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if status > uint8(StatusRevoked) {
		return nil, errors.New("invalid record status")
	}
	r.Status = Status(status)

	if _, err := io.ReadFull(reader, r.TokenID[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, r.FamilyID[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, r.SecretHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, r.ReplacedBy[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}

	subjectLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if subjectLen == 0 {
		return nil, errors.New("empty subject")
	}
	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, err
	}
	r.Subject = string(subject)

	clientLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if clientLen > 0 {
		clientID := make([]byte, clientLen)
		if _, err := io.ReadFull(reader, clientID); err != nil {
			return nil, err
		}
		r.ClientID = string(clientID)
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after record")
	}

	return r, nil
}
