package spellbook

import "strconv"

// maxRowCount stands in for a missing LIMIT when only OFFSET is given;
// MySQL refuses a bare OFFSET clause.
const maxRowCount = "18446744073709551615"

func (f *formatter) formatMySQLLimit(limit, offset int) {
	if limit <= 0 && offset <= 0 {
		return
	}
	if limit > 0 {
		f.write(" LIMIT " + strconv.Itoa(limit))
	} else {
		f.write(" LIMIT " + maxRowCount)
	}
	if offset > 0 {
		f.write(" OFFSET " + strconv.Itoa(offset))
	}
}

// formatMySQLUpsert renders the ON DUPLICATE KEY UPDATE tail. Assigning
// LAST_INSERT_ID(pk) makes LastInsertId report the existing row's id on
// the update path too.
func (f *formatter) formatMySQLUpsert() error {
	s := f.spell
	cols, err := f.setColumns()
	if err != nil {
		return err
	}

	f.write(" ON DUPLICATE KEY UPDATE ")
	first := true
	if pk, ok := s.Model.ColumnFor(s.Model.PrimaryKey); ok {
		f.write(f.escape(pk) + " = LAST_INSERT_ID(" + f.escape(pk) + ")")
		first = false
	}
	for _, c := range cols {
		if c.attr == s.Model.PrimaryKey {
			continue
		}
		if !first {
			f.write(", ")
		}
		f.write(f.escape(c.column) + " = VALUES(" + f.escape(c.column) + ")")
		first = false
	}
	return nil
}
