package store

import (
	"fmt"
	"time"
)

// Key prefixes. Source refs and ledger entries are stored under their
// public keys directly ("src:...", "led:..."), which already namespace
// themselves; everything else gets a short prefix here.
const (
	workPrefix     = "work:"
	variantPrefix  = "var:"
	relationPrefix = "rel:"
	redirectPrefix = "redir:"
	authPrefix     = "auth:"
	statePrefix    = "state:"

	// Secondary indexes.
	workSourceIdxPrefix = "idx:worksrc:"  // idx:worksrc:<workKey>:<sourceKey> -> ""
	workAuthIdxPrefix   = "idx:workauth:" // idx:workauth:<workKey>:<authorityKey> -> ""
	updatedWorkPrefix   = "idx:updated:work:"
	updatedSrcPrefix    = "idx:updated:src:"
)

func workDBKey(workKey string) []byte { return []byte(workPrefix + workKey) }

func variantDBKey(variantKey string) []byte { return []byte(variantPrefix + variantKey) }

func redirectDBKey(obsoleteKey string) []byte { return []byte(redirectPrefix + obsoleteKey) }

func authDBKey(authorityKey string) []byte { return []byte(authPrefix + authorityKey) }

func stateDBKey(profileKey, workKey string) []byte {
	return []byte(statePrefix + profileKey + ":" + workKey)
}

// relationDBKey orders children deterministically under their parent by
// zero-padding the order index, so a prefix scan yields them in order.
func relationDBKey(parentKey string, orderIndex int, childKey string) []byte {
	return fmt.Appendf(nil, "%s%s:%06d:%s", relationPrefix, parentKey, orderIndex, childKey)
}

func relationParentPrefix(parentKey string) []byte {
	return []byte(relationPrefix + parentKey + ":")
}

func workSourceIdxKey(workKey, sourceKey string) []byte {
	return []byte(workSourceIdxPrefix + workKey + ":" + sourceKey)
}

func workAuthIdxKey(workKey, authorityKey string) []byte {
	return []byte(workAuthIdxPrefix + workKey + ":" + authorityKey)
}

// timestampIndexKey builds a lexicographically sortable updated-at index
// key. Nanoseconds are zero-padded to fixed width so string order equals
// time order.
// Format: <prefix><YYYY-MM-DDTHH:MM:SS.NNNNNNNNNZ>:<entityKey>.
func timestampIndexKey(prefix string, ts time.Time, entityKey string) []byte {
	stamp := ts.UTC().Format("2006-01-02T15:04:05") + fmt.Sprintf(".%09d", ts.Nanosecond()) + "Z"
	return fmt.Appendf(nil, "%s%s:%s", prefix, stamp, entityKey)
}

// timestampIndexEntityKey extracts the entity key from a timestamp index
// key. The stamp is fixed width (30 bytes), which sidesteps splitting on
// ":" inside the timestamp or the entity key.
func timestampIndexEntityKey(key []byte, prefix string) (string, error) {
	const stampLen = 30
	rest := string(key)
	if len(rest) < len(prefix)+stampLen+1 {
		return "", fmt.Errorf("timestamp index key too short: %q", rest)
	}
	rest = rest[len(prefix):]
	if rest[stampLen] != ':' {
		return "", fmt.Errorf("timestamp index key missing separator: %q", string(key))
	}
	return rest[stampLen+1:], nil
}
