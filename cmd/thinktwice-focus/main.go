// Command thinktwice-focus reports the current foreground app to the
// thinktwice monitor by writing its package name to the focus state file at
// ~/.thinktwice/foreground.
//
// It is meant to be called from whatever knows about window focus on the
// current desktop: a compositor hook, a window-manager event script, or a
// tool like swaymsg/xdotool piped into it. Two modes:
//
//	thinktwice-focus <package>    write one focus change and exit
//	thinktwice-focus -            read package names from stdin, one per
//	                              line, writing each as a focus change
//
// An empty line (or an empty argument) means "no app in the foreground".
//
// The write is atomic (temp file + rename) so the monitor never reads a
// half-written name. This binary must NOT import any internal thinktwice
// packages; it is standalone and deployed separately from the main CLI.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: thinktwice-focus <package> | thinktwice-focus -")
		os.Exit(2)
	}

	stateDir, err := focusStateDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "thinktwice-focus: %v\n", err)
		os.Exit(1)
	}

	if os.Args[1] == "-" {
		if err := streamFromStdin(stateDir); err != nil {
			fmt.Fprintf(os.Stderr, "thinktwice-focus: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := writeFocus(stateDir, os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "thinktwice-focus: %v\n", err)
		os.Exit(1)
	}
}

func focusStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %v", err)
	}

	dir := filepath.Join(home, ".thinktwice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create state directory: %v", err)
	}
	return dir, nil
}

// streamFromStdin writes a focus change for every line read. Duplicate
// consecutive lines are skipped to avoid needless writes.
func streamFromStdin(stateDir string) error {
	scanner := bufio.NewScanner(os.Stdin)
	last := "\x00" // sentinel that never matches a real package name

	for scanner.Scan() {
		pkg := strings.TrimSpace(scanner.Text())
		if pkg == last {
			continue
		}
		if err := writeFocus(stateDir, pkg); err != nil {
			return err
		}
		last = pkg
	}
	return scanner.Err()
}

// writeFocus atomically replaces the focus state file with the given
// package name. Empty pkg writes an empty file, meaning no foreground app.
func writeFocus(stateDir, pkg string) error {
	target := filepath.Join(stateDir, "foreground")

	tmp, err := os.CreateTemp(stateDir, ".foreground-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %v", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.WriteString(pkg)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return fmt.Errorf("cannot write focus file: %v", werr)
		}
		return fmt.Errorf("cannot write focus file: %v", cerr)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot replace focus file: %v", err)
	}
	return nil
}
