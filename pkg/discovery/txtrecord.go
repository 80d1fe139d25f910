package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeServerTXT creates TXT records for a server.
func EncodeServerTXT(info *ServerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyMap] = info.Map
	txt[TXTKeyMaxPlayers] = strconv.Itoa(info.MaxPlayers)
	txt[TXTKeyVersion] = strconv.Itoa(info.Version)

	// Optional fields
	if info.Players > 0 {
		txt[TXTKeyPlayers] = strconv.Itoa(info.Players)
	}
	if info.Game != "" {
		txt[TXTKeyGame] = info.Game
	}
	if info.Password {
		txt[TXTKeyPassword] = "1"
	}

	return txt
}

// DecodeServerTXT parses TXT records of a server. Name and Port are not
// part of the records and are left zero.
func DecodeServerTXT(txt TXTRecordMap) (*ServerInfo, error) {
	info := &ServerInfo{}

	var ok bool
	info.Map, ok = txt[TXTKeyMap]
	if !ok || info.Map == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyMap)
	}

	maxStr, ok := txt[TXTKeyMaxPlayers]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyMaxPlayers)
	}
	n, err := strconv.Atoi(maxStr)
	if err != nil || n <= 0 || n > MaxPlayers {
		return nil, fmt.Errorf("%w: max players %q", ErrInvalidTXTRecord, maxStr)
	}
	info.MaxPlayers = n

	pvStr, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	info.Version, err = strconv.Atoi(pvStr)
	if err != nil {
		return nil, fmt.Errorf("%w: protocol version %q", ErrInvalidTXTRecord, pvStr)
	}

	if s, ok := txt[TXTKeyPlayers]; ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > info.MaxPlayers {
			return nil, fmt.Errorf("%w: players %q", ErrInvalidTXTRecord, s)
		}
		info.Players = n
	}

	info.Game = txt[TXTKeyGame]
	info.Password = txt[TXTKeyPassword] == "1"

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a sorted slice of
// "key=value" strings.
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

// txtSize returns the wire size of the records: one length byte per string.
func txtSize(strs []string) int {
	n := 0
	for _, s := range strs {
		n += 1 + len(s)
	}
	return n
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

// InstanceName turns a server name into a DNS label: dots and control
// characters become '-', runs of spaces collapse, and the result is cut to
// MaxInstanceNameLen bytes.
func InstanceName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ':
			if space {
				continue
			}
			space = true
			b.WriteRune(r)
			continue
		case r == '.' || r < 0x20 || r == 0x7f:
			r = '-'
		}
		space = false
		b.WriteRune(r)
	}
	s := b.String()
	if len(s) > MaxInstanceNameLen {
		s = s[:MaxInstanceNameLen]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}
