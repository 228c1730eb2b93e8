package spellbook

import "strconv"

func (f *formatter) formatSQLiteLimit(limit, offset int) {
	if limit <= 0 && offset <= 0 {
		return
	}
	if limit > 0 {
		f.write(" LIMIT " + strconv.Itoa(limit))
	} else {
		// OFFSET needs a LIMIT clause; -1 means unbounded.
		f.write(" LIMIT -1")
	}
	if offset > 0 {
		f.write(" OFFSET " + strconv.Itoa(offset))
	}
}
