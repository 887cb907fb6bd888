package mbi

import "unicode/utf8"

// isUTF8Valid is the validity check behind every text accessor: string
// tag bodies and section names go through it before conversion to
// string. It is a variable so a build can substitute a faster
// validator.
var isUTF8Valid = func(b []byte) bool { return utf8.Valid(b) }
