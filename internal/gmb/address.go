package gmb

import "strings"

// FormatAddress flattens a postal address into one display line: address
// lines, locality, administrative area and region code joined by ", ", then
// the postal code after a single space. Missing parts are skipped.
func FormatAddress(addr *PostalAddress) string {
	if addr == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.Join(addr.AddressLines, ", "))

	for _, part := range []string{addr.Locality, addr.AdministrativeArea, addr.RegionCode} {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(part)
	}

	if addr.PostalCode != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(addr.PostalCode)
	}
	return b.String()
}

// ShortAddress is the first comma separated segment of a formatted address.
func ShortAddress(address string) string {
	if i := strings.Index(address, ","); i >= 0 {
		return address[:i]
	}
	return address
}
