package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersion1 = 1
)

var (
	ErrResetNotFound = errors.New("reset challenge not found")
	ErrResetExpired  = errors.New("reset challenge expired")
	ErrResetBackend  = errors.New("reset challenge backend unavailable")
)

// ResetChallenge records an outstanding password reset. Only the SHA-256
// hash of the emailed secret is stored.
type ResetChallenge struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
}

// ResetChallengeStore persists reset challenges with a TTL. Consume is
// single-use by construction: GETDEL removes the record in the same
// round-trip that returns it, so a reset link redeems at most once.
type ResetChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewResetChallengeStore(redisClient redis.UniversalClient, prefix string) *ResetChallengeStore {
	if prefix == "" {
		prefix = "prc"
	}
	return &ResetChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResetChallengeStore) key(resetID string) string {
	return s.prefix + ":" + resetID
}

func (s *ResetChallengeStore) Save(
	ctx context.Context,
	resetID string,
	record *ResetChallenge,
	ttl time.Duration,
) error {
	encoded, err := encodeResetChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(resetID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetBackend, err)
	}
	return nil
}

// Consume atomically fetches and deletes the challenge.
func (s *ResetChallengeStore) Consume(ctx context.Context, resetID string) (*ResetChallenge, error) {
	data, err := s.redis.GetDel(ctx, s.key(resetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetBackend, err)
	}

	record, err := decodeResetChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrResetExpired
	}
	return record, nil
}

func encodeResetChallenge(record *ResetChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(resetRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.SecretHash[:])

	if len(record.UserID) > 65535 {
		return nil, errors.New("reset challenge user id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeResetChallenge(data []byte) (*ResetChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersion1 {
		return nil, errors.New("invalid reset challenge version")
	}

	record := &ResetChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	return record, nil
}
