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
	twoFactorRecordVersion1 = 1
)

var (
	ErrChallengeNotFound = errors.New("two-factor challenge not found")
	ErrChallengeExpired  = errors.New("two-factor challenge expired")
	ErrChallengeBackend  = errors.New("two-factor challenge backend unavailable")
)

// TwoFactorChallenge is the state carried between a credential-complete
// login and the matching code submission. No session token exists while a
// challenge is pending.
type TwoFactorChallenge struct {
	UserID    string
	ExpiresAt int64
	Attempts  uint16
}

// TwoFactorChallengeStore persists pending login challenges in Redis with a
// TTL. Delete reports whether this caller removed the key, which is what
// makes token minting single-success under concurrent confirms.
type TwoFactorChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTwoFactorChallengeStore(redisClient redis.UniversalClient, prefix string) *TwoFactorChallengeStore {
	if prefix == "" {
		prefix = "tfc"
	}
	return &TwoFactorChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *TwoFactorChallengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *TwoFactorChallengeStore) Save(
	ctx context.Context,
	challengeID string,
	record *TwoFactorChallenge,
	ttl time.Duration,
) error {
	encoded, err := encodeTwoFactorChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func (s *TwoFactorChallengeStore) Get(ctx context.Context, challengeID string) (*TwoFactorChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeTwoFactorChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// Delete removes the challenge and reports whether this call deleted it.
func (s *TwoFactorChallengeStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the challenge's wrong-code counter under an
// optimistic transaction. Returns true when the attempt budget is spent; the
// challenge is deleted in the same transaction so the caller cannot keep
// probing codes against it.
func (s *TwoFactorChallengeStore) RecordFailure(
	ctx context.Context,
	challengeID string,
	maxAttempts int,
) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTwoFactorChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			updated, err := encodeTwoFactorChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return exceeded, nil
	}

	return false, ErrChallengeNotFound
}

func encodeTwoFactorChallenge(record *TwoFactorChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(twoFactorRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("two-factor challenge user id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeTwoFactorChallenge(data []byte) (*TwoFactorChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != twoFactorRecordVersion1 {
		return nil, errors.New("invalid two-factor challenge version")
	}

	record := &TwoFactorChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
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
