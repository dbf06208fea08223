// Command ptydemo exposes an ax25term session on a pseudo-terminal
// instead of the controlling TTY, so a separate terminal emulator (or
// minicom, screen, etc.) can attach to the session's stdin/stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

func main() {
	selfPath := flag.String("self", "", "path to the ax25term binary to run attached to the pty (defaults to \"ax25term\" looked up on PATH)")
	flag.Parse()

	ptmx, pts, err := pty.Open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ptydemo: could not open pseudo terminal:", err)
		os.Exit(1)
	}
	defer ptmx.Close()
	defer pts.Close()

	fmt.Fprintf(os.Stderr, "ax25term is available on %s\n", pts.Name())
	fmt.Fprintln(os.Stderr, "attach with: screen", pts.Name())

	bin := *selfPath
	if bin == "" {
		bin = "ax25term"
	}
	cmd := exec.Command(bin, flag.Args()...)
	cmd.Stdin = pts
	cmd.Stdout = pts
	cmd.Stderr = pts
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "ptydemo: could not start", bin, err)
		os.Exit(1)
	}

	go io.Copy(io.Discard, ptmx) // drain so pts writes never block

	if err := cmd.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "ptydemo:", err)
		os.Exit(1)
	}
}
