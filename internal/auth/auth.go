// Package auth is the credential gateway: it knows which usernames
// exist, where their home directories live, and how to issue the
// one-time challenge used by the login handshake.
//
// The record store is read-only after construction and is shared by
// every session without locking.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
)

// DefaultChallengeSize is the number of random bytes in a challenge.
const DefaultChallengeSize = 16

// Gateway is what a session needs from the credential store.
type Gateway interface {
	IsValidUsername(name string) bool
	HomeDirectoryFor(name string) (string, bool)
	IssueChallenge(name string) (Challenge, error)
}

// Record is one user.  Usernames are unique.
type Record struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Home     string `toml:"home"`
}

// Challenge is a one-time pair.  Only Plain is ever sent to the peer.
type Challenge struct {
	Plain    []byte
	Expected []byte
}

// Store is an in-memory Gateway.
type Store struct {
	users map[string]Record
	rand  io.Reader
	size  int
}

// Option customises a Store.
type Option func(*Store)

// WithRandom replaces crypto/rand as the challenge source.
func WithRandom(r io.Reader) Option {
	return func(s *Store) { s.rand = r }
}

// WithChallengeSize overrides DefaultChallengeSize.
func WithChallengeSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.size = n
		}
	}
}

// NewStore validates records and indexes them by username.
func NewStore(records []Record, opts ...Option) (*Store, error) {
	s := &Store{
		users: make(map[string]Record, len(records)),
		rand:  rand.Reader,
		size:  DefaultChallengeSize,
	}
	for _, o := range opts {
		o(s)
	}
	for i, rec := range records {
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("user %d: %w", i+1, err)
		}
		if _, dup := s.users[rec.Username]; dup {
			return nil, fmt.Errorf("user %q defined twice", rec.Username)
		}
		rec.Home = normalizeHome(rec.Home)
		s.users[rec.Username] = rec
	}
	return s, nil
}

// Len reports how many users are known.
func (s *Store) Len() int { return len(s.users) }

// IsValidUsername reports whether name has a record.
func (s *Store) IsValidUsername(name string) bool {
	_, ok := s.users[name]
	return ok
}

// HomeDirectoryFor returns the home directory of name.
func (s *Store) HomeDirectoryFor(name string) (string, bool) {
	rec, ok := s.users[name]
	if !ok {
		return "", false
	}
	return rec.Home, true
}

// IssueChallenge draws a fresh random challenge for name and computes
// the response a client holding the right password will send back.
func (s *Store) IssueChallenge(name string) (Challenge, error) {
	rec, ok := s.users[name]
	if !ok {
		return Challenge{}, fmt.Errorf("unknown user %q", name)
	}
	plain := make([]byte, s.size)
	if _, err := io.ReadFull(s.rand, plain); err != nil {
		return Challenge{}, fmt.Errorf("generate challenge: %w", err)
	}
	return Challenge{Plain: plain, Expected: Response(plain, rec.Password)}, nil
}

// Response is MD5(challenge ++ password bytes).  Clients compute the
// same value from the AuthCheckData payload.
func Response(challenge []byte, password string) []byte {
	h := md5.New()
	h.Write(challenge)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// Verify compares a submitted response with the expected one.
func Verify(expected, got []byte) bool {
	return len(expected) == len(got) && subtle.ConstantTimeCompare(expected, got) == 1
}

func validate(rec Record) error {
	switch {
	case rec.Username == "":
		return fmt.Errorf("empty username")
	case strings.ContainsAny(rec.Username, ":\r\n"):
		return fmt.Errorf("username %q contains a reserved character", rec.Username)
	case rec.Home == "":
		return fmt.Errorf("user %q has no home directory", rec.Username)
	case !strings.HasPrefix(rec.Home, "/") && !hasDriveLetter(rec.Home):
		return fmt.Errorf("home %q of user %q is not absolute", rec.Home, rec.Username)
	}
	return nil
}

// normalizeHome strips trailing separators so that home+"/path" never
// produces a doubled slash at the join.
func normalizeHome(home string) string {
	return strings.TrimRight(home, "/")
}

func hasDriveLetter(p string) bool {
	return len(p) >= 3 && p[1] == ':' && (p[2] == '/' || p[2] == '\\')
}
