package budget

// Validate checks the dataset against the required schema and returns the
// first violation found, or nil when the dataset is valid.
//
// Sections are checked in the order revenue, expenditure, inflation,
// gdp_growth. Within an item, name/amount and year/rate are checked in that
// order. amount and rate must be numbers; year must be a string.
func Validate(d RawDataset) error {
	for _, s := range schema {
		value, ok := d[s.Section]
		if !ok {
			return missingSection(s.Section)
		}

		list, ok := value.([]any)
		if !ok {
			return notList(s.Section)
		}

		for i, entry := range list {
			item, ok := entry.(map[string]any)
			if !ok {
				return notObject(s.Section, i)
			}

			for _, field := range s.Fields {
				v, ok := item[field]
				if !ok {
					return missingField(s.Section, i, field)
				}
				if err := checkFieldType(s.Section, i, field, v); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// IsValid reports whether the dataset passes Validate
func IsValid(d RawDataset) bool {
	return Validate(d) == nil
}

func checkFieldType(section string, index int, field string, v any) *ValidationError {
	switch field {
	case FieldAmount, FieldRate:
		if _, ok := numeric(v); !ok {
			return wrongType(section, index, field, "numeric")
		}
	case FieldYear:
		if _, ok := v.(string); !ok {
			return wrongType(section, index, field, "a string")
		}
	}
	return nil
}
