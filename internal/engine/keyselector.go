package engine

import "strconv"

// ParseKeySelector splits a CLI key selector "path[@unix_ts]" into its
// path and optional from-timestamp. "abc" -> ("abc", nil);
// "abc@123" -> ("abc", &123); "@123" -> ("", &123).
func ParseKeySelector(selector string) (path string, from *int64, err error) {
	for i := 0; i < len(selector); i++ {
		if selector[i] == '@' {
			ts, perr := strconv.ParseInt(selector[i+1:], 10, 64)
			if perr != nil {
				return "", nil, perr
			}
			return selector[:i], &ts, nil
		}
	}
	return selector, nil, nil
}
