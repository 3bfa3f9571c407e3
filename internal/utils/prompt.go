package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptFrom writes message to out and reads one trimmed line from in.
func PromptFrom(in io.Reader, out io.Writer, message string) (string, error) {
	fmt.Fprintf(out, "%s: ", message)
	text, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
