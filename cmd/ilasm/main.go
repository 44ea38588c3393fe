package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm"
)

func main() {
	var (
		output = flag.String("o", "", "Output path (default: input with .ilm or .il extension)")
		disasm = flag.Bool("d", false, "Disassemble a binary module to text")
		stdout = flag.Bool("stdout", false, "Write disassembly to stdout")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ilasm [-o out.ilm] <module.il>")
		fmt.Fprintln(os.Stderr, "       ilasm -d [-o out.il | -stdout] <module.ilm>")
		os.Exit(2)
	}

	var err error
	if *disasm {
		err = disassemble(flag.Arg(0), *output, *stdout)
	} else {
		err = assemble(flag.Arg(0), *output)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func assemble(input, output string) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	data, err := ilasm.Compile(string(src))
	if err != nil {
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(input, ".il") + il.FileExt
	}
	return il.WriteBytes(output, data)
}

func disassemble(input, output string, toStdout bool) error {
	m, err := il.ReadFile(input)
	if err != nil {
		return err
	}
	text := ilasm.Disassemble(m)
	if toStdout {
		_, err := fmt.Print(text)
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(input, il.FileExt) + ".il"
	}
	return il.WriteBytes(output, []byte(text))
}
