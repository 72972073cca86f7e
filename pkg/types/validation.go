package types

const roomCodeLength = 6

// IsValidRoomCode reports whether code looks like a server-issued join
// code: exactly six characters from A-Z and 0-9.
func IsValidRoomCode(code string) bool {
	if len(code) != roomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// IsValidHexColor accepts #rgb and #rrggbb forms.
func IsValidHexColor(color string) bool {
	if len(color) != 4 && len(color) != 7 {
		return false
	}
	if color[0] != '#' {
		return false
	}
	for i := 1; i < len(color); i++ {
		c := color[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

var validTools = map[string]bool{
	ToolPen:         true,
	ToolMarker:      true,
	ToolHighlighter: true,
	ToolEraser:      true,
	ToolRectangle:   true,
	ToolCircle:      true,
	ToolLine:        true,
	ToolArrow:       true,
	ToolText:        true,
	ToolSelect:      true,
}

// IsValidTool reports whether tool is one of the protocol tool names.
func IsValidTool(tool string) bool {
	return validTools[tool]
}
