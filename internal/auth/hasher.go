package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"

	DefaultBcryptCost = 12
	MinBcryptCost     = 10
)

// argon2id parameters (OWASP baseline).
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordHasher hashes and verifies passwords. Verify never errors: an
// unparseable digest simply does not match.
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return DefaultBcryptCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	if pw == "" {
		return "", "", ErrEmptyPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("%s:%d", AlgoBcrypt, b.cost()), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash is true for non-bcrypt digests and for a cost other than b's.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != b.cost()
}

// Argon2idHasher encodes digests in PHC format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2idHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

func NewArgon2idHasher() Argon2idHasher {
	return Argon2idHasher{Time: argon2Time, Memory: argon2Memory, Threads: argon2Threads}
}

func (a Argon2idHasher) Hash(pw string) (string, string, error) {
	if pw == "" {
		return "", "", ErrEmptyPassword
	}
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	key := argon2.IDKey([]byte(pw), salt, a.Time, a.Memory, a.Threads, argon2KeyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.Memory, a.Time, a.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
	return encoded, AlgoArgon2id, nil
}

const (
	argon2MaxMemory = 1 << 21 // KiB
	argon2MaxTime   = 64
)

type argon2Params struct {
	version               int
	memory, time, threads uint32
	salt, key             []byte
}

func parseArgon2id(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, errors.New("invalid argon2id hash")
	}
	var p argon2Params
	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.version); err != nil {
		return nil, err
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, err
	}
	if p.version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", p.version)
	}
	if p.threads == 0 || p.threads > 255 {
		return nil, fmt.Errorf("threads value %d out of range", p.threads)
	}
	if p.time == 0 || p.time > argon2MaxTime {
		return nil, fmt.Errorf("time value %d out of range", p.time)
	}
	// argon2 needs at least 8 KiB per lane; the upper bound keeps a stored
	// digest from forcing an unbounded allocation.
	if p.memory < 8*p.threads || p.memory > argon2MaxMemory {
		return nil, fmt.Errorf("memory value %d out of range", p.memory)
	}
	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, err
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, err
	}
	if len(p.key) == 0 || len(p.key) > 1<<10 {
		return nil, fmt.Errorf("invalid key length %d", len(p.key))
	}
	return &p, nil
}

func (a Argon2idHasher) Verify(hash, pw string) bool {
	p, err := parseArgon2id(hash)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(pw), p.salt, p.time, p.memory, uint8(p.threads), uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

func (a Argon2idHasher) NeedsRehash(hash string) bool {
	p, err := parseArgon2id(hash)
	if err != nil {
		return true
	}
	return p.version != argon2.Version || p.memory != a.Memory || p.time != a.Time || p.threads != uint32(a.Threads)
}

// MultiHasher hashes with Primary and verifies digests of either supported
// format, so accounts keep working after PASSWORD_HASH_ALGO changes.
type MultiHasher struct {
	Primary PasswordHasher
	Bcrypt  BcryptHasher
	Argon2  Argon2idHasher
}

func (m MultiHasher) Hash(pw string) (string, string, error) { return m.Primary.Hash(pw) }

func (m MultiHasher) Verify(hash, pw string) bool {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return m.Argon2.Verify(hash, pw)
	case strings.HasPrefix(hash, "$2"):
		return m.Bcrypt.Verify(hash, pw)
	default:
		return false
	}
}

func (m MultiHasher) NeedsRehash(hash string) bool { return m.Primary.NeedsRehash(hash) }

type HasherConfig struct {
	Algo       string
	BcryptCost int
}

// HasherConfigFromEnv reads PASSWORD_HASH_ALGO and BCRYPT_COST. The cost is
// raised to MinBcryptCost when configured lower.
func HasherConfigFromEnv() HasherConfig {
	algo := strings.ToLower(strings.TrimSpace(os.Getenv("PASSWORD_HASH_ALGO")))
	if algo == "" {
		algo = AlgoBcrypt
	}
	return HasherConfig{Algo: algo, BcryptCost: utilities.EnvInt("BCRYPT_COST", DefaultBcryptCost)}
}

// NewHasher builds the dispatching hasher for cfg.
func NewHasher(cfg HasherConfig) (MultiHasher, error) {
	cost := cfg.BcryptCost
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		return MultiHasher{}, fmt.Errorf("bcrypt cost %d exceeds %d", cost, bcrypt.MaxCost)
	}
	m := MultiHasher{Bcrypt: BcryptHasher{Cost: cost}, Argon2: NewArgon2idHasher()}
	switch cfg.Algo {
	case AlgoBcrypt, "":
		m.Primary = m.Bcrypt
	case AlgoArgon2id:
		m.Primary = m.Argon2
	default:
		return MultiHasher{}, fmt.Errorf("unsupported password hash algorithm %q", cfg.Algo)
	}
	return m, nil
}
