package buyergroup

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "corp": true, "corporation": true,
	"co": true, "company": true, "llc": true, "llp": true, "lp": true,
	"ltd": true, "limited": true, "plc": true, "gmbh": true, "ag": true,
	"sa": true, "sas": true, "srl": true, "bv": true, "nv": true,
	"pty": true, "oy": true, "ab": true, "kk": true,
}

var folder = cases.Fold()

// foldText strips diacritics and folds case.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(out)
}

// titleWords folds s and splits it into words.
func titleWords(s string) []string {
	return strings.FieldsFunc(foldText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
}

// NormalizeName folds a company name for matching: diacritics removed, case
// folded, punctuation collapsed and trailing legal suffixes dropped.
// "Acmé Corp., Inc." and "acme" normalize to the same value.
func NormalizeName(name string) string {
	words := titleWords(name)
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// NormalizeDomain reduces a URL or host to its bare lowercase host without
// scheme, port, path or leading "www.".
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(u.Hostname(), ".")
	return strings.TrimPrefix(host, "www.")
}

// CompanyKey is the company-cache key for a request: the normalized domain
// hint when present, else the normalized name.
func CompanyKey(name, domain string) string {
	if d := NormalizeDomain(domain); d != "" {
		return "domain:" + d
	}
	return "name:" + NormalizeName(name)
}
