package report

import "strings"

// DataSetDescription extracts the data-set text from a testcase feature
// attribute: the substring after the first '|', entity-decoded. The
// runner double-encodes the attribute, so one manual decoding pass
// remains after the XML decoder's own. Absence of '|' means the case ran
// without a data set.
func DataSetDescription(feature string) (string, bool) {
	i := strings.Index(feature, "|")
	if i < 0 {
		return "", false
	}
	return decodeEntities(feature[i+1:]), true
}

// decodeEntities resolves the five entities the runner emits, in this
// order, with &amp; last.
func decodeEntities(s string) string {
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}
