package store

import "context"

// Stats returns aggregate counters for the mirror.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(oeis_id), 0) FROM oeis_entries`).
		Scan(&st.Entries, &st.HighestID)
	if err != nil {
		return Stats{}, err
	}
	err = s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM oeis_entries WHERE t1 = t2`).Scan(&st.ZeroWindow)
	if err != nil {
		return Stats{}, err
	}
	if st.Entries > 0 {
		err = s.DB.QueryRowContext(ctx,
			`SELECT MIN(t2), MAX(t2) FROM oeis_entries`).Scan(&st.OldestT2, &st.NewestT2)
		if err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}
