package kadence

import "time"

// Protocol constants from the Kademlia paper.
const (
	// B is the bit width of the identifier space.
	B = 160

	// K is the bucket capacity and lookup result size.
	K = 20

	// Alpha is the lookup parallelism factor.
	Alpha = 3

	// KeyLen is the canonical fingerprint length in bytes.
	KeyLen = B / 8

	// HexKeyLen is the length of a fingerprint in hex form.
	HexKeyLen = KeyLen * 2
)

// Default intervals for the maintenance loops.
const (
	DefaultRefreshInterval   = time.Hour
	DefaultReplicateInterval = time.Hour
	DefaultRepublishInterval = 24 * time.Hour
	DefaultExpireInterval    = 24 * time.Hour

	// DefaultMaxJitter is the upper bound of the uniform random delay added
	// to every timer firing to break convoys.
	DefaultMaxJitter = 30 * time.Minute

	// DefaultPingCacheTTL bounds how long a successful head probe keeps a
	// bucket head exempt from re-probing.
	DefaultPingCacheTTL = 10 * time.Minute

	// DefaultResponseTimeout bounds detached fire-and-forget RPCs. Timeouts
	// for request/response RPCs are owned by the Transport implementation.
	DefaultResponseTimeout = 10 * time.Second

	// DefaultMaxUnimprovedRefreshes stops a refresh pass after this many
	// consecutive lookups that discovered no new fingerprints.
	DefaultMaxUnimprovedRefreshes = 4
)
