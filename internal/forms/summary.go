package forms

// Summarize reduces a non-empty entry set into its year-range summary.
// min/max are computed over all recovered years; the title is the most
// frequent one across entries, ties broken by the title seen at the latest
// year. The form number is taken from the first entry in catalog order.
func Summarize(entries []Entry) (Summary, error) {
	if len(entries) == 0 {
		return Summary{}, ErrNotFound
	}

	s := Summary{
		FormNumber: entries[0].FormNumber,
		MinYear:    entries[0].Year,
		MaxYear:    entries[0].Year,
	}

	counts := make(map[string]int, len(entries))
	latest := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.Year < s.MinYear {
			s.MinYear = e.Year
		}
		if e.Year > s.MaxYear {
			s.MaxYear = e.Year
		}
		counts[e.Title]++
		if e.Year > latest[e.Title] {
			latest[e.Title] = e.Year
		}
	}

	for title := range counts {
		if s.FormTitle == "" {
			s.FormTitle = title
			continue
		}
		switch {
		case counts[title] > counts[s.FormTitle]:
			s.FormTitle = title
		case counts[title] == counts[s.FormTitle] && latest[title] > latest[s.FormTitle]:
			s.FormTitle = title
		}
	}

	return s, nil
}
