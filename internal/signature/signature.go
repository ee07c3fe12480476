// Package signature derives stable identity keys for job postings.
//
// A signature is a pure function of (company id, normalized title): SHA-256
// over "{company_id}:{normalized_title}", hex encoded. Description changes
// are deliberately ignored, so an edited posting with an unchanged title is
// the same job, refreshed.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// maxSlugLen bounds slugs for URL use.
const maxSlugLen = 100

// Compute returns the 64-char hex dedup key for a posting. Titles that
// differ only in case or whitespace collide.
func Compute(companyID int64, title string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(companyID, 10) + ":" + normalizeTitle(title)))
	return hex.EncodeToString(sum[:])
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// Slugify lowercases the title, collapses every run of non-alphanumeric
// characters into a single hyphen, trims hyphens, and truncates to 100
// characters. Slugs are for URLs only and carry no identity.
func Slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}
	slug := b.String()
	if runes := []rune(slug); len(runes) > maxSlugLen {
		slug = strings.TrimRight(string(runes[:maxSlugLen]), "-")
	}
	return slug
}
