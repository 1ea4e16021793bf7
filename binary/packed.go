package binary

// packPad fills the low nibble of the last byte of an odd-length packed string.
const packPad = 15

func isNibbleString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func packNibble(c byte) byte {
	switch c {
	case '-':
		return 10
	case '.':
		return 11
	default:
		return c - '0'
	}
}

func packHex(c byte) byte {
	if c >= 'A' {
		return c - 'A' + 10
	}
	return c - '0'
}

func unpackNibble(v byte) (byte, bool) {
	switch {
	case v <= 9:
		return '0' + v, true
	case v == 10:
		return '-', true
	case v == 11:
		return '.', true
	default:
		return 0, false
	}
}

func unpackHex(v byte) (byte, bool) {
	switch {
	case v <= 9:
		return '0' + v, true
	case v <= 15:
		return 'A' + v - 10, true
	default:
		return 0, false
	}
}
