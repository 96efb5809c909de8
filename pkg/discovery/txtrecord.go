package discovery

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *EchoInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion: strconv.Itoa(TXTVersion),
		TXTKeyTLS:     "0",
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
		if info.ServerName != "" {
			txt[TXTKeyServerName] = info.ServerName
		}
		if info.Fingerprint != "" {
			txt[TXTKeyFingerprint] = info.Fingerprint
		}
	}
	return txt
}

// DecodeTXT parses TXT records into the TXT-carried fields of EchoInfo.
func DecodeTXT(txt TXTRecordMap) (*EchoInfo, error) {
	v, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if n, err := strconv.Atoi(v); err != nil || n < 1 {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, v)
	}

	info := &EchoInfo{}
	switch txt[TXTKeyTLS] {
	case "1":
		info.TLS = true
	case "0", "":
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyTLS, txt[TXTKeyTLS])
	}
	info.ServerName = txt[TXTKeyServerName]
	info.Fingerprint = txt[TXTKeyFingerprint]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

// DefaultInstanceName returns "netlab-<hostname>-<port>", truncated to the
// label limit.
func DefaultInstanceName(port uint16) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	host, _, _ = strings.Cut(host, ".")
	name := fmt.Sprintf("netlab-%s-%d", host, port)
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// Fingerprint is the first 64 bits (16 hex chars) of SHA-256 over the
// certificate DER.
func Fingerprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:8])
}
