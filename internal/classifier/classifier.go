// Package classifier decides whether a payment's sender account marks it
// as requiring a fiscal receipt.
package classifier

// The balance-code window sits at a fixed position inside the IBAN-like
// sender account. Historical versions disagreed on the offset (14 vs 15 vs
// 16); the authoritative definition is the 4 characters immediately after
// the first 15, i.e. positions 15-18 zero-indexed.
const (
	PatternOffset = 15
	PatternLen    = 4

	minAccountLen = PatternOffset + PatternLen
)

// Config holds the pattern tables. Loaded once at startup and injected so
// tests can run against alternate tables.
type Config struct {
	// NonTargetCodes are balance codes whose payments never need a receipt.
	NonTargetCodes []string
	// ExcludedAccount is always non-target regardless of its embedded code.
	ExcludedAccount string
}

// DefaultConfig returns the production pattern tables.
func DefaultConfig() Config {
	return Config{
		NonTargetCodes:  []string{"2600", "2605", "2650", "2655"},
		ExcludedAccount: "UA903052990000029029011112233",
	}
}

type Classifier struct {
	nonTarget map[string]struct{}
	excluded  string
}

func New(cfg Config) *Classifier {
	codes := make(map[string]struct{}, len(cfg.NonTargetCodes))
	for _, c := range cfg.NonTargetCodes {
		codes[c] = struct{}{}
	}
	return &Classifier{nonTarget: codes, excluded: cfg.ExcludedAccount}
}

// IsTarget reports whether the sender account requires a receipt.
// Fail-safe: accounts that are empty or too short to carry the code window
// never require one. The result is computed once at ingestion and stored
// on the payment, not recomputed on reads.
func (c *Classifier) IsTarget(account string) bool {
	if len(account) < minAccountLen {
		return false
	}
	if c.excluded != "" && account == c.excluded {
		return false
	}
	window := account[PatternOffset : PatternOffset+PatternLen]
	if _, ok := c.nonTarget[window]; ok {
		return false
	}
	return true
}
