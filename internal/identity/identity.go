// Package identity derives the stable fingerprint that deduplicates
// postings across sources, and resolves incoming postings against rows
// already in the store.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"job_applier/internal/domain"
	"job_applier/internal/store"
)

// legalSuffixes are dropped from company names so "Acme" and "Acme Inc."
// fingerprint identically.
var legalSuffixes = map[string]struct{}{
	"inc":          {},
	"incorporated": {},
	"ltd":          {},
	"limited":      {},
	"llc":          {},
	"llp":          {},
	"plc":          {},
	"corp":         {},
	"corporation":  {},
	"gmbh":         {},
	"co":           {},
	"company":      {},
	"group":        {},
	"holdings":     {},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics and punctuation, leaving
// space-separated alphanumeric tokens.
func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeTitle canonicalizes a job title for identity comparison.
func NormalizeTitle(title string) string {
	return fold(title)
}

// NormalizeCompany canonicalizes a company name, dropping legal suffixes.
func NormalizeCompany(company string) string {
	tokens := strings.Fields(fold(company))
	kept := tokens[:0]
	for _, t := range tokens {
		if _, ok := legalSuffixes[t]; ok {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		// A name made entirely of suffix tokens still needs an identity.
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// NormalizeLocation canonicalizes a location. Only the first comma segment
// participates: sources disagree on region/country tails far more than on
// the city itself.
func NormalizeLocation(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return fold(city)
}

// Fingerprint computes the stable cross-source identity of a posting.
func Fingerprint(p *domain.Posting) string {
	key := NormalizeTitle(p.Title) + "|" + NormalizeCompany(p.Company) + "|" + NormalizeLocation(p.Location)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Resolver matches postings to existing store rows, falling back to a fuzzy
// title+company comparison when the exact fingerprint misses. The candidate
// index is built from one store scan per batch, not one per posting.
type Resolver struct {
	// Threshold is the minimum similarity, in [0,1], for a fuzzy match.
	Threshold float64

	mu     sync.Mutex
	keys   []fuzzyKey
	primed bool
}

// fuzzyKey is the per-row material the fuzzy comparison needs.
type fuzzyKey struct {
	fingerprint  string
	titleCompany string
	location     string
}

func NewResolver(threshold float64) *Resolver {
	return &Resolver{Threshold: threshold}
}

func recordKey(rec *domain.ApplicationRecord) fuzzyKey {
	return fuzzyKey{
		fingerprint:  rec.Fingerprint,
		titleCompany: NormalizeTitle(rec.Title) + " " + NormalizeCompany(rec.Company),
		location:     NormalizeLocation(rec.Location),
	}
}

// Reset drops the cached candidate index. Call it at the start of an ingest
// run so the scan reflects rows committed since the previous run.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.keys = nil
	r.primed = false
	r.mu.Unlock()
}

// Note indexes a newly inserted record so postings later in the same batch
// can fuzzy-match it without another store scan.
func (r *Resolver) Note(rec *domain.ApplicationRecord) {
	r.mu.Lock()
	if r.primed {
		r.keys = append(r.keys, recordKey(rec))
	}
	r.mu.Unlock()
}

// Resolve finds the existing record a posting belongs to, or nil when the
// posting is new. ambiguous is set when more than one row cleared the fuzzy
// threshold: the best candidate is returned but must be flagged for manual
// review rather than silently merged.
func (r *Resolver) Resolve(ctx context.Context, st store.RecordStore, p *domain.Posting) (match *domain.ApplicationRecord, ambiguous bool, err error) {
	rec, err := st.Get(ctx, p.Fingerprint)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	keys, err := r.index(ctx, st)
	if err != nil {
		return nil, false, err
	}

	want := NormalizeTitle(p.Title) + " " + NormalizeCompany(p.Company)
	wantLoc := NormalizeLocation(p.Location)
	var matched []string
	for _, k := range keys {
		// Same title and company in another city is a different job.
		if k.location != wantLoc {
			continue
		}
		if Similarity(want, k.titleCompany) >= r.Threshold {
			matched = append(matched, k.fingerprint)
		}
	}

	// Candidates are re-read so the caller merges against current versions.
	var candidates []*domain.ApplicationRecord
	for _, fp := range matched {
		c, err := st.Get(ctx, fp)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		candidates = append(candidates, c)
	}

	switch len(candidates) {
	case 0:
		return nil, false, nil
	case 1:
		return candidates[0], false, nil
	}

	// Contested match: prefer the most recently updated row and flag it.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.LastUpdatedAt.After(best.LastUpdatedAt) {
			best = c
		}
	}
	return best, true, nil
}

// index returns the fuzzy candidate keys, scanning the store only when the
// cache is cold.
func (r *Resolver) index(ctx context.Context, st store.RecordStore) ([]fuzzyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primed {
		return r.keys, nil
	}

	existing, err := st.Query(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	keys := make([]fuzzyKey, 0, len(existing))
	for i := range existing {
		keys = append(keys, recordKey(&existing[i]))
	}
	r.keys = keys
	r.primed = true
	return r.keys, nil
}

// Similarity is a normalized Levenshtein ratio in [0,1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
