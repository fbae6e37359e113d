package core

// countPlaceholders walks the query text and counts '?' parameter markers,
// skipping string literals, quoted identifiers and comments. The marker is
// only meaningful in value positions, but positions are the backend's
// business; here only the count matters.
func countPlaceholders(q string) int {
	const (
		sText = iota
		sSQ   // '...'
		sDQ   // "..."
		sBT   // `...`
		sLC   // line comment --
		sBC   // block comment /* ... */
	)
	state := sText
	n := 0

	for i := 0; i < len(q); i++ {
		c := q[i]

		switch state {
		case sText:
			switch {
			case c == '?':
				n++
			case c == '\'':
				state = sSQ
			case c == '"':
				state = sDQ
			case c == '`':
				state = sBT
			case c == '-' && i+1 < len(q) && q[i+1] == '-':
				state = sLC
				i++
			case c == '/' && i+1 < len(q) && q[i+1] == '*':
				state = sBC
				i++
			}

		case sSQ:
			if c == '\\' {
				i++
			} else if c == '\'' {
				// '' is an escaped quote inside the literal
				if i+1 < len(q) && q[i+1] == '\'' {
					i++
				} else {
					state = sText
				}
			}

		case sDQ:
			if c == '\\' {
				i++
			} else if c == '"' {
				if i+1 < len(q) && q[i+1] == '"' {
					i++
				} else {
					state = sText
				}
			}

		case sBT:
			if c == '`' {
				if i+1 < len(q) && q[i+1] == '`' {
					i++
				} else {
					state = sText
				}
			}

		case sLC:
			if c == '\n' || c == '\r' {
				state = sText
			}

		case sBC:
			if c == '*' && i+1 < len(q) && q[i+1] == '/' {
				i++
				state = sText
			}
		}
	}
	return n
}
