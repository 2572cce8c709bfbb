package resolvers

import "fmt"

// CacheEntryType categorizes cached DNS responses for different TTL handling.
// It is the resolvers package's own classification, kept distinct from
// internal/cache's EntryType so response classification (analyzeCacheDecision)
// and negative admission don't need to import the generic cache package;
// Dispatcher maps between the two at the one place they meet.
type CacheEntryType int

const (
	CachePositive CacheEntryType = iota // Successful response with answers
	CacheNXDOMAIN                       // Non-existent domain (RCODE=3)
	CacheNODATA                         // Name exists but no data for query type
	CacheSERVFAIL                       // Server failure (RCODE=2)
)

// String returns the human-readable name of the cache entry type.
func (cet CacheEntryType) String() string {
	switch cet {
	case CachePositive:
		return "positive"
	case CacheNXDOMAIN:
		return "nxdomain"
	case CacheNODATA:
		return "nodata"
	case CacheSERVFAIL:
		return "servfail"
	default:
		return fmt.Sprintf("unknown(%d)", cet)
	}
}
