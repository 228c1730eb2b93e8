package spell

import "context"

// Runner executes a compiled spell and returns its rows. The root client
// satisfies this.
type Runner interface {
	Query(ctx context.Context, sp *Spell) ([]map[string]any, error)
}

// Batch pages through a select spell in fixed-size chunks.
type Batch struct {
	spell *Spell
	size  int
	done  bool
}

// Batch returns a pager over the spell. The pager owns its duplicate, so
// continuing to chain on s does not disturb iteration.
func (s *Spell) Batch(size int) *Batch {
	d := s.Dup()
	d.setLimit(size)
	return &Batch{spell: d, size: size}
}

// Next fetches the next page, advancing the offset. It returns nil rows
// and nil error once exhausted; a short page marks the batch done.
func (b *Batch) Next(ctx context.Context, r Runner) ([]map[string]any, error) {
	if b.done {
		return nil, nil
	}
	rows, err := r.Query(ctx, b.spell)
	if err != nil {
		return nil, err
	}
	if len(rows) < b.size {
		b.done = true
	}
	if len(rows) == 0 {
		return nil, nil
	}
	b.spell.Skip += b.size
	return rows, nil
}
