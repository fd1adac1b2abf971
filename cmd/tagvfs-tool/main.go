// Command tagvfs-tool is a debug CLI that drives an ArchiveManager
// directly in-process, descended from cmd/w64tool: stdlib flag parsing
// and a switch over a verb argument, minus the HTTP client layer (there is
// no wire protocol here, just a local file).
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tagvfs/internal/config"
	"tagvfs/internal/manager"
	"tagvfs/internal/version"
)

func main() {
	var archivePath string
	var configPath string
	var showVersion bool
	flag.StringVar(&archivePath, "archive", "archive.dat", "Path to the archive file")
	flag.StringVar(&configPath, "config", "", "Path to an optional JSON config file for new archives")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Get().String())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err)
	}

	m, err := manager.NewAt(archivePath, cfg)
	if err != nil {
		fatal(err)
	}
	defer m.Close()

	cmd := strings.ToLower(args[0])
	switch cmd {
	case "add":
		if len(args) < 2 {
			fmt.Println("add <name> [tag...]")
			os.Exit(2)
		}
		fileno, err := m.AddFile(args[1], 0xFFFF, 0, nil, args[2:])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("fileno=%d\n", fileno)
	case "import":
		if len(args) < 3 {
			fmt.Println("import <host-path> <name> [tag...]")
			os.Exit(2)
		}
		fileno, err := m.ImportFile(args[1], args[2], 0xFFFF, 0, args[3:])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("fileno=%d\n", fileno)
	case "cat":
		if len(args) < 2 {
			fmt.Println("cat <fileno>")
			os.Exit(2)
		}
		fileno := parseUint16(args[1])
		_, payload, err := m.ReadFile(fileno)
		if err != nil {
			fatal(err)
		}
		os.Stdout.Write(payload)
	case "rm":
		if len(args) < 2 {
			fmt.Println("rm <fileno>")
			os.Exit(2)
		}
		if err := m.RemoveFile(parseUint16(args[1])); err != nil {
			fatal(err)
		}
	case "find":
		if len(args) < 2 {
			fmt.Println("find <name>")
			os.Exit(2)
		}
		filenos, err := m.FindFile(args[1])
		if err != nil {
			fatal(err)
		}
		for _, fn := range filenos {
			fmt.Println(fn)
		}
	case "tag":
		if len(args) < 2 {
			fmt.Println("tag <name>")
			os.Exit(2)
		}
		tagno, err := m.AddTag(args[1])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("tagno=%d\n", tagno)
	case "rmtag":
		if len(args) < 2 {
			fmt.Println("rmtag <tagno>")
			os.Exit(2)
		}
		if err := m.RemoveTag(parseUint16(args[1])); err != nil {
			fatal(err)
		}
	case "expand":
		if len(args) < 3 {
			fmt.Println("expand <fileno> <tag>")
			os.Exit(2)
		}
		if err := m.ExpandTag(parseUint16(args[1]), args[2]); err != nil {
			fatal(err)
		}
	case "reduce":
		if len(args) < 3 {
			fmt.Println("reduce <fileno> <tag>")
			os.Exit(2)
		}
		if err := m.ReduceTag(parseUint16(args[1]), args[2]); err != nil {
			fatal(err)
		}
	case "merge":
		if len(args) < 3 {
			fmt.Println("merge <dst-tagno> <src-tagno>")
			os.Exit(2)
		}
		if err := m.MergeTags(parseUint16(args[1]), parseUint16(args[2])); err != nil {
			fatal(err)
		}
	case "ls-tag":
		if len(args) < 2 {
			fmt.Println("ls-tag <tagno>")
			os.Exit(2)
		}
		filenos, err := m.ListFilesWithTag(parseUint16(args[1]))
		if err != nil {
			fatal(err)
		}
		for _, fn := range filenos {
			fmt.Println(fn)
		}
	case "size-of-tag":
		if len(args) < 2 {
			fmt.Println("size-of-tag <tagno>")
			os.Exit(2)
		}
		size, err := m.SizeOfTag(parseUint16(args[1]))
		if err != nil {
			fatal(err)
		}
		fmt.Println(size)
	case "backup":
		dst, err := m.BackupArchive()
		if err != nil {
			fatal(err)
		}
		fmt.Println(dst)
	case "resize":
		if err := m.Archive().Resize(); err != nil {
			fatal(err)
		}
		fmt.Println("OK")
	case "flush":
		if err := m.Flush(); err != nil {
			fatal(err)
		}
		fmt.Println("OK")
	case "destroy":
		if err := m.Destroy(); err != nil {
			fatal(err)
		}
		fmt.Println("OK")
	case "version":
		fmt.Println(version.Get().String())
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("Usage: tagvfs-tool -archive <path> <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  add <name> [tag...]")
	fmt.Println("  import <host-path> <name> [tag...]")
	fmt.Println("  cat <fileno>")
	fmt.Println("  rm <fileno>")
	fmt.Println("  find <name>")
	fmt.Println("  tag <name>")
	fmt.Println("  rmtag <tagno>")
	fmt.Println("  expand <fileno> <tag>")
	fmt.Println("  reduce <fileno> <tag>")
	fmt.Println("  merge <dst-tagno> <src-tagno>")
	fmt.Println("  ls-tag <tagno>")
	fmt.Println("  size-of-tag <tagno>")
	fmt.Println("  backup")
	fmt.Println("  resize")
	fmt.Println("  flush")
	fmt.Println("  destroy")
}

func parseUint16(s string) uint16 {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		fatal(err)
	}
	return uint16(v)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "tagvfs-tool:", err)
	os.Exit(1)
}
