package token

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/decide-vote/voteauth/internal"
)

const recordVersion1 = 1

var (
	// ErrNotFound indicates the token key does not resolve.
	ErrNotFound = errors.New("token not found")
	// ErrBackend indicates the token backend is unreachable.
	ErrBackend = errors.New("token backend unavailable")
)

// Store keeps tokens in Redis under prefix:key. Tokens carry no TTL; they
// live until Delete.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a token store using the given client and key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "vat"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(tokenKey string) string {
	return s.prefix + ":" + tokenKey
}

// Create mints a fresh token for userID and persists it. The returned token
// is immediately visible to Find from any caller.
func (s *Store) Create(ctx context.Context, userID string) (*Token, error) {
	if userID == "" {
		return nil, errors.New("token owner required")
	}

	key, err := internal.NewTokenKey()
	if err != nil {
		return nil, err
	}

	tok := &Token{
		Key:       key,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	encoded, err := encodeToken(tok)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, s.key(key), encoded, 0).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return tok, nil
}

// Find resolves a token key. Unknown keys return [ErrNotFound].
func (s *Store) Find(ctx context.Context, tokenKey string) (*Token, error) {
	if tokenKey == "" {
		return nil, ErrNotFound
	}

	data, err := s.redis.Get(ctx, s.key(tokenKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	tok, err := decodeToken(data)
	if err != nil {
		return nil, err
	}
	tok.Key = tokenKey
	return tok, nil
}

// Delete removes a token. Deleting an absent token is not an error; the
// bool reports whether this call removed it. Once Delete returns, the key no
// longer resolves from any caller.
func (s *Store) Delete(ctx context.Context, tokenKey string) (bool, error) {
	if tokenKey == "" {
		return false, nil
	}

	n, err := s.redis.Del(ctx, s.key(tokenKey)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}

func encodeToken(tok *Token) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, tok.CreatedAt.Unix()); err != nil {
		return nil, err
	}

	if len(tok.UserID) > 65535 {
		return nil, errors.New("token user id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(tok.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(tok.UserID)

	return buf.Bytes(), nil
}

func decodeToken(data []byte) (*Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersion1 {
		return nil, errors.New("invalid token record version")
	}

	var createdAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
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

	return &Token{
		UserID:    string(user),
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}
