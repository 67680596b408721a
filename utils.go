package cryptoguard

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeDomain reduces a page url to the host key ratings and comments are indexed by.
// Scheme, path, query, port and any leading "www." labels are dropped. Input without a host segment
// comes back lowercased but otherwise untouched.
func NormalizeDomain(url string) string {
	host := url
	if strings.Contains(host, "://") {
		parts := strings.Split(host, "/")
		if len(parts) < 3 || parts[2] == "" {
			return strings.ToLower(url)
		}
		host = parts[2]
	} else {
		host = strings.Split(host, "/")[0]
	}

	host = strings.Split(host, "?")[0]
	host = strings.Split(host, "#")[0]

	// userinfo
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}

	host = strings.Split(host, ":")[0]
	host = strings.ToLower(host)
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}

	if host == "" {
		return strings.ToLower(url)
	}

	return host
}

// IsValidFlagURL admits http and https urls only.
func IsValidFlagURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func IsAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
