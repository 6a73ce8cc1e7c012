package nextdns

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// HexEncode writes every UTF-16 code unit of s as lowercase hex without padding. The API
// accepts "hex:<value>" wherever an item id would otherwise need escaping.
func HexEncode(s string) string {
	var b strings.Builder
	for _, unit := range utf16.Encode([]rune(s)) {
		b.WriteString(strconv.FormatUint(uint64(unit), 16))
	}
	return b.String()
}

// ItemPath addresses one entry of a list resource.
func ItemPath(list Resource, id string) string {
	return string(list) + "/hex:" + HexEncode(id)
}
