// Command zipcore is a small manual-verification front end for the zipcore
// library: list, extract, and create ZIP archives from the shell.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zipcore/zipcore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "create":
		err = runCreate(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("zipcore", "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: zipcore list <archive>")
	fmt.Fprintln(os.Stderr, "       zipcore extract <archive> <dir>")
	fmt.Fprintln(os.Stderr, "       zipcore create <archive> <files...>")
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("list: expected exactly one archive path")
	}

	a, closer, err := zipcore.OpenFile(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, e := range a.Entries() {
		kind := "f"
		if e.IsDir() {
			kind = "d"
		}
		fmt.Printf("%s %10d %s %s\n", kind, e.UncompressedSize, e.Modified.Format("2006-01-02 15:04:05"), e.Name)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("extract: expected an archive path and a destination directory")
	}
	archivePath, destDir := fs.Arg(0), fs.Arg(1)

	a, closer, err := zipcore.OpenFile(archivePath)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, e := range a.Entries() {
		dest, err := safeJoin(destDir, e.Name)
		if err != nil {
			return fmt.Errorf("extract %q: %w", e.Name, err)
		}
		if e.IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		n, err := e.Extract(f)
		closeErr := f.Close()
		if err != nil {
			return fmt.Errorf("extract %q: %w", e.Name, err)
		}
		if closeErr != nil {
			return closeErr
		}
		slog.Debug("zipcore: extracted", "name", e.Name, "bytes", n)
	}
	return nil
}

// safeJoin joins name onto destDir and rejects the result if it would
// escape destDir, guarding against zip-slip entries like "../../etc/passwd"
// that the archive format itself places no restriction on.
func safeJoin(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry escapes destination directory: %w", zipcore.ErrInvalidInput)
	}
	return dest, nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("create: expected an archive path and at least one input file")
	}
	archivePath := fs.Arg(0)
	inputs := fs.Args()[1:]

	w, err := zipcore.CreateFile(archivePath)
	if err != nil {
		return err
	}

	for _, path := range inputs {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Base(path))
		if info.IsDir() {
			if _, err := w.AddDir(name); err != nil {
				return err
			}
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = w.Add(name, f, zipcore.WithModTime(info.ModTime()))
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}

	bytesWritten, err := w.Close()
	if err != nil {
		return err
	}
	slog.Debug("zipcore: created archive", "path", archivePath, "bytes", bytesWritten)
	return nil
}
