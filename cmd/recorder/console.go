package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"session-recorder/internal/services/control"
)

// readConsole: her satır bir not; "/" ile başlayanlar komut.
func readConsole(in io.Reader, out io.Writer, ctrl control.Controller) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		handleLine(out, ctrl, sc.Text())
	}
}

func handleLine(out io.Writer, ctrl control.Controller, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var err error
	switch line {
	case "/start":
		err = ctrl.Start()
	case "/stop":
		err = ctrl.Stop()
	case "/status":
		rep := ctrl.Status()
		fmt.Fprintf(out, "📊 State: %s", rep.State)
		if s := rep.Session; s != nil {
			fmt.Fprintf(out, " | %s | frames=%d skipped=%d notes=%d", s.ID, s.Frames, s.Skipped, s.Annotations)
		}
		fmt.Fprintln(out)
	default:
		err = ctrl.Annotate(line)
		if err == nil {
			fmt.Fprintln(out, "📝 Noted.")
		}
	}
	if err != nil {
		fmt.Fprintln(out, "⚠️", err)
	}
}
