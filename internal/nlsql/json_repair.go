package nlsql

// repairJSON adds the opening quote models sometimes drop before an object key,
// e.g. `{ function_call": {` becomes `{ "function_call": {`.
func repairJSON(s string) string {
	src := []rune(s)
	fixed := make([]rune, 0, len(src)+16)

	i := 0
	for i < len(src) {
		ch := src[i]
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}

		fixed = append(fixed, ch)
		i++
		for i < len(src) && isSpace(src[i]) {
			fixed = append(fixed, src[i])
			i++
		}
		if i >= len(src) || !isLetter(src[i]) {
			continue
		}

		start := i
		for i < len(src) && (isLetter(src[i]) || src[i] == '_') {
			i++
		}
		if i+1 < len(src) && src[i] == '"' && src[i+1] == ':' {
			fixed = append(fixed, '"')
		}
		fixed = append(fixed, src[start:i]...)
	}
	return string(fixed)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
