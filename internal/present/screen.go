package present

import (
	"fmt"
	"io"
)

// EnterScreen switches the terminal to the alternate screen and hides the cursor.
func EnterScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l")
}

// LeaveScreen restores the cursor and the primary screen.
func LeaveScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25h\x1b[?1049l"+resetANSI)
}

func moveCursorHome(w io.Writer) {
	fmt.Fprint(w, "\x1b[H")
}
