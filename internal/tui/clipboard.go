package tui

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// copyToClipboard asks the terminal to place text on the system clipboard
// using the OSC 52 escape sequence.
func copyToClipboard(text string) {
	writeOSC52(os.Stderr, text)
}

func writeOSC52(w io.Writer, text string) {
	fmt.Fprintf(w, "\x1b]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
}
