package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/volfs"
	"github.com/hupe1980/volfs/codec"
)

// menu drives a volume from line-oriented input. Every prompt consumes one
// line; end of input behaves like choosing exit.
type menu struct {
	v     *volfs.Volume
	in    *bufio.Scanner
	out   io.Writer
	json  bool
	codec codec.Codec
}

func newMenu(v *volfs.Volume, in io.Reader, out io.Writer) *menu {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return &menu{v: v, in: s, out: out}
}

// result is the JSON form of an operation outcome.
type result struct {
	Op      string            `json:"op"`
	OK      bool              `json:"ok"`
	Error   string            `json:"error,omitempty"`
	File    *volfs.FileInfo   `json:"file,omitempty"`
	Content *string           `json:"content,omitempty"`
	Info    *volfs.VolumeInfo `json:"info,omitempty"`
	Dirs    []string          `json:"directories,omitempty"`
}

// run shows the menu until the user exits. It returns nil on exit or end of
// input; the caller saves the volume.
func (m *menu) run() error {
	for {
		if !m.json {
			m.printStructure()
			fmt.Fprint(m.out, "\nFile System Menu:\n"+
				"1. Create file\n"+
				"2. Read file\n"+
				"3. Write to file\n"+
				"4. Delete file\n"+
				"5. Print file details\n"+
				"6. Print filesystem info\n"+
				"7. Print available directories\n"+
				"8. Exit\n")
		}
		choice, ok := m.prompt("Enter your choice: ")
		if !ok {
			return m.in.Err()
		}

		switch choice {
		case "1":
			m.createFile()
		case "2":
			m.readFile()
		case "3":
			m.writeFile()
		case "4":
			m.deleteFile()
		case "5":
			m.fileDetails()
		case "6":
			m.info()
		case "7":
			m.directories()
		case "8", "exit", "quit":
			return nil
		default:
			m.fail("menu", fmt.Errorf("invalid choice %q", choice))
		}
	}
}

// prompt prints label and returns the next input line, trimmed.
func (m *menu) prompt(label string) (string, bool) {
	if !m.json {
		fmt.Fprint(m.out, label)
	}
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// fields prompts for each label in turn and stops at end of input.
func (m *menu) fields(labels ...string) ([]string, bool) {
	out := make([]string, len(labels))
	for i, l := range labels {
		v, ok := m.prompt(l)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (m *menu) emit(r result) {
	if err := codec.Write(m.out, m.codec, r); err != nil {
		fmt.Fprintf(m.out, "encode result: %v\n", err)
	}
}

func (m *menu) fail(op string, err error) {
	if m.json {
		m.emit(result{Op: op, Error: err.Error()})
		return
	}
	fmt.Fprintf(m.out, "Error: %v\n", err)
}

func (m *menu) done(op, msg string) {
	if m.json {
		m.emit(result{Op: op, OK: true})
		return
	}
	fmt.Fprintln(m.out, msg)
}

func (m *menu) createFile() {
	f, ok := m.fields("Enter directory name: ", "Enter filename: ", "Enter file size: ",
		"Enter owner username: ", "Enter number of allowed users: ")
	if !ok {
		return
	}
	size, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		m.fail("create", fmt.Errorf("invalid size %q", f[2]))
		return
	}
	n, err := strconv.Atoi(f[4])
	if err != nil || n < 0 {
		m.fail("create", fmt.Errorf("invalid number of allowed users %q", f[4]))
		return
	}
	var allowed []string
	for i := 0; i < n; i++ {
		u, ok := m.prompt(fmt.Sprintf("Enter allowed user %d: ", i+1))
		if !ok {
			return
		}
		allowed = append(allowed, u)
	}

	if err := m.v.CreateFile(f[0], f[1], size, f[3], allowed); err != nil {
		m.fail("create", err)
		return
	}
	m.done("create", fmt.Sprintf("File %s created successfully", f[1]))
}

func (m *menu) readFile() {
	f, ok := m.fields("Enter directory name: ", "Enter filename: ", "Enter username: ")
	if !ok {
		return
	}
	data, err := m.v.ReadFile(f[0], f[1], f[2])
	if err != nil {
		m.fail("read", err)
		return
	}
	// Unwritten bytes are zero; show only the written prefix.
	content := string(bytes.TrimRight(data, "\x00"))
	if m.json {
		m.emit(result{Op: "read", OK: true, Content: &content})
		return
	}
	fmt.Fprintf(m.out, "Reading file %s:\n%s\n", f[1], content)
}

func (m *menu) writeFile() {
	f, ok := m.fields("Enter directory name: ", "Enter filename: ", "Enter username: ", "Enter content: ")
	if !ok {
		return
	}
	if err := m.v.WriteFile(f[0], f[1], f[2], []byte(f[3])); err != nil {
		m.fail("write", err)
		return
	}
	m.done("write", fmt.Sprintf("File %s updated successfully.", f[1]))
}

func (m *menu) deleteFile() {
	f, ok := m.fields("Enter directory name: ", "Enter filename: ", "Enter username: ")
	if !ok {
		return
	}
	if err := m.v.DeleteFile(f[0], f[1], f[2]); err != nil {
		m.fail("delete", err)
		return
	}
	m.done("delete", fmt.Sprintf("File %s deleted successfully from directory %s.", f[1], f[0]))
}

func (m *menu) fileDetails() {
	f, ok := m.fields("Enter directory name: ", "Enter filename: ")
	if !ok {
		return
	}
	fi, err := m.v.DescribeFile(f[0], f[1])
	if err != nil {
		m.fail("details", err)
		return
	}
	if m.json {
		m.emit(result{Op: "details", OK: true, File: &fi})
		return
	}
	fmt.Fprintf(m.out, "Filename: %s\n", fi.Name)
	fmt.Fprintf(m.out, "Size: %d bytes\n", fi.Size)
	fmt.Fprintf(m.out, "Blocks: %d starting at %d\n", fi.Blocks, fi.StartBlock)
	fmt.Fprintf(m.out, "Created: %s\n", fi.CreatedAt.Local().Format(time.ANSIC))
	fmt.Fprintf(m.out, "Owner: %s\n", fi.Owner)
	fmt.Fprintf(m.out, "Allowed users: %s\n", strings.Join(fi.AllowedUsers, " "))
}

func (m *menu) info() {
	vi := m.v.Info()
	if m.json {
		m.emit(result{Op: "info", OK: true, Info: &vi})
		return
	}
	fmt.Fprintln(m.out, "Filesystem Information:")
	fmt.Fprintf(m.out, "Allocation: %s\n", vi.Allocation)
	fmt.Fprintf(m.out, "Block size: %d bytes\n", vi.BlockSize)
	fmt.Fprintf(m.out, "Total blocks: %d\n", vi.TotalBlocks)
	fmt.Fprintf(m.out, "Free blocks: %d\n", vi.FreeBlocks)
	fmt.Fprintf(m.out, "Total space: %d bytes\n", vi.TotalBytes)
	fmt.Fprintf(m.out, "Free space: %d bytes\n", vi.FreeBytes)
	fmt.Fprintf(m.out, "Number of directories: %d\n", vi.DirCount)
	fmt.Fprintf(m.out, "Number of users: %d\n", vi.UserCount)
	fmt.Fprintf(m.out, "Number of files: %d\n", vi.FileCount)
}

func (m *menu) directories() {
	dirs := m.v.ListDirectories()
	if m.json {
		m.emit(result{Op: "directories", OK: true, Dirs: dirs})
		return
	}
	fmt.Fprintln(m.out, "Available directories:")
	for _, d := range dirs {
		fmt.Fprintln(m.out, d)
	}
}

func (m *menu) printStructure() {
	fmt.Fprintln(m.out, "\nCurrent Filesystem Structure:")
	for _, d := range m.v.Structure() {
		fmt.Fprintf(m.out, "Directory: %s\n", d.Name)
		if len(d.Files) == 0 {
			fmt.Fprintln(m.out, "  (empty)")
			continue
		}
		for _, f := range d.Files {
			fmt.Fprintf(m.out, "  - %s\n", f)
		}
	}
}
